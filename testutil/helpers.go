// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
//	resp := testutil.RawExchange(t, addr, fixtures.GetRequest("/users/42"))
// =============================================================================
package testutil

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"reflect"
	"testing"
	"time"

	"golang.org/x/net/http2"

	"github.com/BaSui01/gatewire/internal/eventbus"
	"github.com/BaSui01/gatewire/internal/tlsutil"
	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t testing.TB, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition did not become true within %v", timeout)
	}
}

// AssertEventuallyEqual 断言值最终相等
func AssertEventuallyEqual(t testing.TB, expected any, getter func() any, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var lastValue any
	for time.Now().Before(deadline) {
		lastValue = getter()
		if reflect.DeepEqual(expected, lastValue) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("value did not become %v within %v, last value: %v", expected, timeout, lastValue)
}

// AssertEventKinds 断言事件序列的类型依次为 kinds
func AssertEventKinds(t testing.TB, events []types.LifecycleEvent, kinds ...types.EventKind) {
	t.Helper()
	if len(events) != len(kinds) {
		t.Errorf("event count mismatch: expected %d, got %d (%v)", len(kinds), len(events), eventKinds(events))
		return
	}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("event[%d] kind mismatch: expected %s, got %s", i, k, events[i].Kind)
		}
	}
}

func eventKinds(events []types.LifecycleEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kind.String()
	}
	return out
}

// =============================================================================
// ⏱️ 时间辅助
// =============================================================================

// WaitFor 等待条件满足或超时
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// WaitForChannel 等待通道接收或超时
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// =============================================================================
// 📡 事件收集
// =============================================================================

// CollectEvents 从订阅中读取事件，直到收到 n 个、订阅关闭或超时
func CollectEvents(sub *eventbus.Subscription, n int, timeout time.Duration) []types.LifecycleEvent {
	events := make([]types.LifecycleEvent, 0, n)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for len(events) < n {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timer.C:
			return events
		}
	}
	return events
}

// CollectUntil 读取事件直到 stop 返回 true（包含该事件）、订阅关闭或超时
func CollectUntil(sub *eventbus.Subscription, stop func(types.LifecycleEvent) bool, timeout time.Duration) []types.LifecycleEvent {
	var events []types.LifecycleEvent
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return events
			}
			events = append(events, ev)
			if stop(ev) {
				return events
			}
		case <-timer.C:
			return events
		}
	}
}

// =============================================================================
// 🔌 线路辅助
// =============================================================================

// RawExchange 建立 TCP 连接，写入原始请求字节，读取直到对端关闭
func RawExchange(t testing.TB, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := io.WriteString(conn, request); err != nil {
		t.Fatalf("write request: %v", err)
	}
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return string(data)
}

// ReadResponse 在已建立的连接上解析一个 HTTP/1.x 响应
func ReadResponse(t testing.TB, br *bufio.Reader) *http.Response {
	t.Helper()
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

// =============================================================================
// 🔐 TLS 辅助
// =============================================================================

// SelfSignedBundle 生成测试用自签名证书，alpn 为空时使用默认顺序
func SelfSignedBundle(t testing.TB, alpn ...string) *tlsutil.CredentialBundle {
	t.Helper()
	bundle, err := tlsutil.SelfSigned(alpn, "localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("self-signed bundle: %v", err)
	}
	return bundle
}

// ClientTLSConfig 返回信任 bundle 的客户端配置，只通告 protos 中的 ALPN
func ClientTLSConfig(bundle *tlsutil.CredentialBundle, protos ...string) *tls.Config {
	return &tls.Config{
		RootCAs:    bundle.RootPool(),
		ServerName: "localhost",
		NextProtos: protos,
		MinVersion: tls.VersionTLS12,
	}
}

// H2Client 返回只走 HTTP/2 的客户端
func H2Client(bundle *tlsutil.CredentialBundle) *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http2.Transport{TLSClientConfig: ClientTLSConfig(bundle, "h2")},
	}
}

// H1Client 返回只通告 http/1.1 的 TLS 客户端
func H1Client(bundle *tlsutil.CredentialBundle) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:   ClientTLSConfig(bundle, "http/1.1"),
			DisableKeepAlives: true,
		},
	}
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}
