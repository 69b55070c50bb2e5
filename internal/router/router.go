// Package router resolves request paths to registered handlers.
//
// Patterns have the form "[METHOD ]/seg/seg", where each segment is either a
// literal or a named parameter "{name}". Matching is exact on segment count.
// At every position a literal segment is preferred over a parameter, with
// backtracking, so the longest static prefix wins. Duplicate patterns are
// always rejected.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/gatewire/types"
)

var (
	// ErrInvalidPattern 路由模式格式不合法
	ErrInvalidPattern = errors.New("router: invalid pattern")
	// ErrDuplicateRoute 相同方法与路径的路由已注册
	ErrDuplicateRoute = errors.New("router: duplicate route")
	// ErrNilHandler 处理器为 nil
	ErrNilHandler = errors.New("router: nil handler")
	// ErrRouterFrozen 路由表冻结后不允许注册
	ErrRouterFrozen = errors.New("router: registration after freeze")
	// ErrNotFound 没有路由匹配请求路径
	ErrNotFound = errors.New("router: no route matches path")
	// ErrMethodNotAllowed 路径匹配但方法不匹配
	ErrMethodNotAllowed = errors.New("router: method not allowed")
)

// MethodNotAllowedError is returned when the path matches but no route
// accepts the method. It matches ErrMethodNotAllowed with errors.Is.
type MethodNotAllowedError struct {
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("%v: %s (allowed: %s)", ErrMethodNotAllowed, e.Path, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) Is(target error) bool {
	return target == ErrMethodNotAllowed
}

// Match is the outcome of a successful Resolve.
type Match struct {
	Handler types.Handler
	Params  map[string]string
	Pattern string
}

type route struct {
	pattern string
	method  string
	names   []string
	handler types.Handler
}

type node struct {
	literal map[string]*node
	param   *node
	routes  map[string]*route
}

func newNode() *node {
	return &node{literal: make(map[string]*node)}
}

// Router maps patterns to handlers. Register is only valid before Freeze;
// after Freeze the trie is never written and Resolve takes no lock.
type Router struct {
	mu       sync.Mutex
	root     *node
	frozen   atomic.Bool
	patterns []string
}

// New creates an empty router.
func New() *Router {
	return &Router{root: newNode()}
}

// Register adds a route. Invalid patterns, nil handlers and duplicates are
// rejected; the router is left unchanged on error.
func (r *Router) Register(pattern string, h types.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, pattern)
	}
	method, segs, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: %q", ErrRouterFrozen, pattern)
	}

	// 先检查重复，再写入，保证失败时不留下空节点
	if n := r.find(segs); n != nil {
		if existing, ok := n.routes[method]; ok {
			return fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateRoute, pattern, existing.pattern)
		}
	}

	n := r.root
	var names []string
	for _, s := range segs {
		if s.param {
			if n.param == nil {
				n.param = newNode()
			}
			n = n.param
			names = append(names, s.value)
			continue
		}
		child, ok := n.literal[s.value]
		if !ok {
			child = newNode()
			n.literal[s.value] = child
		}
		n = child
	}
	if n.routes == nil {
		n.routes = make(map[string]*route)
	}
	n.routes[method] = &route{pattern: pattern, method: method, names: names, handler: h}
	r.patterns = append(r.patterns, pattern)
	return nil
}

func (r *Router) find(segs []segment) *node {
	n := r.root
	for _, s := range segs {
		if s.param {
			n = n.param
		} else {
			n = n.literal[s.value]
		}
		if n == nil {
			return nil
		}
	}
	return n
}

// Freeze makes the router read-only.
func (r *Router) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Router) Frozen() bool {
	return r.frozen.Load()
}

// Routes returns the registered patterns in sorted order.
func (r *Router) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.patterns...)
	sort.Strings(out)
	return out
}

// Resolve finds the handler for method and path. It returns ErrNotFound when
// no pattern matches the path, and a *MethodNotAllowedError when patterns
// match the path but none accepts the method.
func (r *Router) Resolve(method, path string) (Match, error) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	if !strings.HasPrefix(path, "/") {
		return Match{}, ErrNotFound
	}
	segs := splitPath(path)

	var fallback *node
	rt, values := r.root.lookup(segs, method, make([]string, 0, len(segs)), &fallback)
	if rt == nil {
		if fallback != nil {
			return Match{}, &MethodNotAllowedError{Path: path, Allowed: fallback.methods()}
		}
		return Match{}, ErrNotFound
	}

	params := make(map[string]string, len(rt.names))
	for i, name := range rt.names {
		params[name] = values[i]
	}
	return Match{Handler: rt.handler, Params: params, Pattern: rt.pattern}, nil
}

// lookup walks the trie depth first, literal child before parameter child.
// fallback records the first node that matched the path but not the method.
func (n *node) lookup(segs []string, method string, values []string, fallback **node) (*route, []string) {
	if len(segs) == 0 {
		if len(n.routes) == 0 {
			return nil, nil
		}
		if rt := n.routeFor(method); rt != nil {
			return rt, values
		}
		if *fallback == nil {
			*fallback = n
		}
		return nil, nil
	}

	seg := segs[0]
	if child, ok := n.literal[seg]; ok {
		if rt, vals := child.lookup(segs[1:], method, values, fallback); rt != nil {
			return rt, vals
		}
	}
	if n.param != nil && seg != "" {
		if rt, vals := n.param.lookup(segs[1:], method, append(values, seg), fallback); rt != nil {
			return rt, vals
		}
	}
	return nil, nil
}

func (n *node) routeFor(method string) *route {
	if rt, ok := n.routes[method]; ok {
		return rt
	}
	return n.routes[""]
}

func (n *node) methods() []string {
	out := make([]string, 0, len(n.routes))
	for m := range n.routes {
		if m != "" {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
