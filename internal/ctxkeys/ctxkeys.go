// Package ctxkeys 定义请求上下文中携带的连接信息键。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	connectionIDKey contextKey = "connection_id"
	remoteAddrKey   contextKey = "remote_addr"
	protocolKey     contextKey = "protocol"
	routePatternKey contextKey = "route_pattern"
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func getString(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithConnectionID 设置连接 ID
func WithConnectionID(ctx context.Context, id string) context.Context {
	return withString(ctx, connectionIDKey, id)
}

// ConnectionID 获取连接 ID
func ConnectionID(ctx context.Context) (string, bool) {
	return getString(ctx, connectionIDKey)
}

// WithRemoteAddr 设置对端地址
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return withString(ctx, remoteAddrKey, addr)
}

// RemoteAddr 获取对端地址
func RemoteAddr(ctx context.Context) (string, bool) {
	return getString(ctx, remoteAddrKey)
}

// WithProtocol 设置协商后的协议（HTTP/1.1 或 HTTP/2.0）
func WithProtocol(ctx context.Context, proto string) context.Context {
	return withString(ctx, protocolKey, proto)
}

// Protocol 获取协议
func Protocol(ctx context.Context) (string, bool) {
	return getString(ctx, protocolKey)
}

// WithRoutePattern 设置命中的路由模式
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return withString(ctx, routePatternKey, pattern)
}

// RoutePattern 获取命中的路由模式
func RoutePattern(ctx context.Context) (string, bool) {
	return getString(ctx, routePatternKey)
}
