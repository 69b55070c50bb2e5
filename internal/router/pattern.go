package router

import (
	"fmt"
	"strings"
)

type segment struct {
	value string
	param bool
}

// parsePattern splits "[METHOD ]/path" into an upper-cased method ("" for any)
// and validated segments.
func parsePattern(pattern string) (string, []segment, error) {
	if pattern == "" {
		return "", nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	method := ""
	path := pattern
	if m, rest, ok := strings.Cut(pattern, " "); ok {
		method = strings.ToUpper(m)
		path = strings.TrimLeft(rest, " ")
		if !isToken(method) {
			return "", nil, fmt.Errorf("%w: bad method %q in %q", ErrInvalidPattern, m, pattern)
		}
	}
	if !strings.HasPrefix(path, "/") {
		return "", nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPattern, pattern)
	}

	raw := splitPath(path)
	segs := make([]segment, 0, len(raw))
	seen := make(map[string]struct{})
	for i, s := range raw {
		switch {
		case s == "":
			// 仅允许末尾空段（尾随斜杠）
			if i != len(raw)-1 {
				return "", nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPattern, pattern)
			}
			segs = append(segs, segment{})
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			name := s[1 : len(s)-1]
			if !isIdent(name) {
				return "", nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidPattern, s, pattern)
			}
			if _, dup := seen[name]; dup {
				return "", nil, fmt.Errorf("%w: parameter %q repeated in %q", ErrInvalidPattern, name, pattern)
			}
			seen[name] = struct{}{}
			segs = append(segs, segment{value: name, param: true})
		case strings.ContainsAny(s, "{}"):
			return "", nil, fmt.Errorf("%w: stray brace in segment %q of %q", ErrInvalidPattern, s, pattern)
		default:
			segs = append(segs, segment{value: s})
		}
	}
	return method, segs, nil
}

// splitPath returns the segments after the leading slash. "/" has none.
func splitPath(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(path[1:], "/")
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
