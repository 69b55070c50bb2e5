package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/gatewire/types"
)

// namedHandler 返回自身名字，便于断言命中了哪个路由
func namedHandler(name string) types.Handler {
	return types.HandlerFunc(func(context.Context, types.ConnectionID, *types.Request) (*types.Response, error) {
		return types.OK().WithText(name), nil
	})
}

func handlerName(t *testing.T, h types.Handler) string {
	t.Helper()
	resp, err := h.ServeWire(context.Background(), "test", types.NewRequest("GET", "/"))
	require.NoError(t, err)
	return string(resp.Body)
}

func TestRegister_InvalidPatterns(t *testing.T) {
	tests := []string{
		"",
		"users",
		"GET users",
		"get1 /users",
		"/users/{}",
		"/users/{1id}",
		"/users/{id",
		"/users/id}",
		"/users/x{id}",
		"/a//b",
		"/a/{id}/{id}",
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			r := New()
			err := r.Register(pattern, namedHandler("x"))
			assert.ErrorIs(t, err, ErrInvalidPattern)
			assert.Empty(t, r.Routes())
		})
	}
}

func TestRegister_NilHandler(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register("/x", nil), ErrNilHandler)
}

func TestRegister_DuplicateAlwaysRejected(t *testing.T) {
	// 重复注册策略：始终拒绝，多次运行结果一致
	for i := 0; i < 20; i++ {
		r := New()
		require.NoError(t, r.Register("GET /users/{id}", namedHandler("first")))
		err := r.Register("GET /users/{name}", namedHandler("second"))
		require.ErrorIs(t, err, ErrDuplicateRoute)

		m, err := r.Resolve("GET", "/users/42")
		require.NoError(t, err)
		assert.Equal(t, "first", handlerName(t, m.Handler))
		assert.Equal(t, map[string]string{"id": "42"}, m.Params)
	}
}

func TestRegister_SameShapeDifferentMethods(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("GET /items/{id}", namedHandler("get")))
	require.NoError(t, r.Register("DELETE /items/{id}", namedHandler("delete")))
	require.NoError(t, r.Register("/items/{id}", namedHandler("any")))
	assert.ErrorIs(t, r.Register("get /items/{x}", namedHandler("dup")), ErrDuplicateRoute)

	m, err := r.Resolve("DELETE", "/items/1")
	require.NoError(t, err)
	assert.Equal(t, "delete", handlerName(t, m.Handler))

	m, err = r.Resolve("PUT", "/items/1")
	require.NoError(t, err)
	assert.Equal(t, "any", handlerName(t, m.Handler))
}

func TestRegister_AfterFreeze(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("/a", namedHandler("a")))
	r.Freeze()
	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Register("/b", namedHandler("b")), ErrRouterFrozen)
	assert.Equal(t, []string{"/a"}, r.Routes())
}

func TestResolve_ConcreteScenario(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("GET /users/{id}", namedHandler("user")))
	r.Freeze()

	m, err := r.Resolve("GET", "/users/42")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "42"}, m.Params)
	assert.Equal(t, "GET /users/{id}", m.Pattern)
}

func TestResolve_LiteralBeatsParameter(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("/users/{id}", namedHandler("param")))
	require.NoError(t, r.Register("/users/me", namedHandler("literal")))
	require.NoError(t, r.Register("/users/{id}/posts", namedHandler("param-posts")))
	require.NoError(t, r.Register("/users/me/settings", namedHandler("literal-settings")))
	r.Freeze()

	tests := []struct {
		path   string
		want   string
		params map[string]string
	}{
		{path: "/users/me", want: "literal", params: map[string]string{}},
		{path: "/users/42", want: "param", params: map[string]string{"id": "42"}},
		{path: "/users/me/settings", want: "literal-settings", params: map[string]string{}},
		// 字面量分支走不通时回溯到参数分支
		{path: "/users/me/posts", want: "param-posts", params: map[string]string{"id": "me"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, err := r.Resolve("GET", tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, handlerName(t, m.Handler))
			assert.Equal(t, tt.params, m.Params)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("/users/{id}", namedHandler("user")))
	require.NoError(t, r.Register("/", namedHandler("root")))
	r.Freeze()

	for _, path := range []string{"/users", "/users/1/2", "/users/", "/other", "users/1", ""} {
		_, err := r.Resolve("GET", path)
		assert.ErrorIs(t, err, ErrNotFound, "path %q", path)
	}

	m, err := r.Resolve("GET", "/")
	require.NoError(t, err)
	assert.Equal(t, "root", handlerName(t, m.Handler))
}

func TestResolve_TrailingSlashIsDistinct(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("/docs/", namedHandler("slash")))
	require.NoError(t, r.Register("/docs", namedHandler("bare")))

	m, err := r.Resolve("GET", "/docs/")
	require.NoError(t, err)
	assert.Equal(t, "slash", handlerName(t, m.Handler))

	m, err = r.Resolve("GET", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "bare", handlerName(t, m.Handler))
}

func TestResolve_MethodNotAllowed(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("POST /orders", namedHandler("create")))
	require.NoError(t, r.Register("GET /orders", namedHandler("list")))
	r.Freeze()

	_, err := r.Resolve("DELETE", "/orders")
	require.ErrorIs(t, err, ErrMethodNotAllowed)

	var mna *MethodNotAllowedError
	require.True(t, errors.As(err, &mna))
	assert.Equal(t, []string{"GET", "POST"}, mna.Allowed)
}

func TestResolve_MethodFallsBackToParameterRoute(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("GET /users/me", namedHandler("me")))
	require.NoError(t, r.Register("POST /users/{id}", namedHandler("update")))

	m, err := r.Resolve("POST", "/users/me")
	require.NoError(t, err)
	assert.Equal(t, "update", handlerName(t, m.Handler))
	assert.Equal(t, map[string]string{"id": "me"}, m.Params)
}

func TestResolve_ConcurrentAfterFreeze(t *testing.T) {
	r := New()
	for i := 0; i < 50; i++ {
		require.NoError(t, r.Register(fmt.Sprintf("/svc%d/{id}", i), namedHandler(fmt.Sprint(i))))
	}
	r.Freeze()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m, err := r.Resolve("GET", fmt.Sprintf("/svc%d/%d", i%50, g))
				if assert.NoError(t, err) {
					assert.Equal(t, fmt.Sprint(g), m.Params["id"])
				}
			}
		}(g)
	}
	wg.Wait()
}

// genSegment 生成字面量或参数段
type genPattern struct {
	pattern string
	path    string
	params  map[string]string
}

func drawPattern(t *rapid.T) genPattern {
	n := rapid.IntRange(0, 5).Draw(t, "segments")
	var pat, path strings.Builder
	params := map[string]string{}
	for i := 0; i < n; i++ {
		if rapid.Bool().Draw(t, fmt.Sprintf("param%d", i)) {
			name := fmt.Sprintf("p%d", i)
			value := rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(t, fmt.Sprintf("value%d", i))
			pat.WriteString("/{" + name + "}")
			path.WriteString("/" + value)
			params[name] = value
			continue
		}
		lit := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, fmt.Sprintf("lit%d", i))
		pat.WriteString("/" + lit)
		path.WriteString("/" + lit)
	}
	if n == 0 {
		return genPattern{pattern: "/", path: "/", params: params}
	}
	return genPattern{pattern: pat.String(), path: path.String(), params: params}
}

func TestProperty_ResolveReturnsRegisteredHandlerAndParams(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := drawPattern(rt)

		r := New()
		require.NoError(rt, r.Register(g.pattern, namedHandler(g.pattern)))
		r.Freeze()

		m, err := r.Resolve("GET", g.path)
		require.NoError(rt, err)
		assert.Equal(rt, g.pattern, m.Pattern)
		assert.Equal(rt, g.params, m.Params)
	})
}

func TestProperty_NonMatchingPathIsNotFound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := drawPattern(rt)

		r := New()
		require.NoError(rt, r.Register(g.pattern, namedHandler(g.pattern)))
		r.Freeze()

		// 多一个段永远无法匹配（精确段数）
		_, err := r.Resolve("GET", strings.TrimSuffix(g.path, "/")+"/extra/segment")
		assert.ErrorIs(rt, err, ErrNotFound)
	})
}
