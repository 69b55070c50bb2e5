// =============================================================================
// 📦 测试数据工厂 - 原始 HTTP/1.x 请求
// =============================================================================
// 提供预定义的线路字节，用于驱动监听器与会话测试
// =============================================================================
package fixtures

import (
	"fmt"
	"strings"
)

// TLSClientHelloPrefix TLS 1.0 记录头：handshake(0x16) + 版本 0x03 0x01
const TLSClientHelloPrefix = "\x16\x03\x01"

// GetRequest 返回带 Connection: close 的 GET 请求
func GetRequest(path string) string {
	return "GET " + path + " HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n"
}

// KeepAliveGet 返回不带 Connection 头的 GET 请求
func KeepAliveGet(path string) string {
	return "GET " + path + " HTTP/1.1\r\nHost: example\r\n\r\n"
}

// PostRequest 返回带 body 的 POST 请求
func PostRequest(path, contentType, body string) string {
	return fmt.Sprintf("POST %s HTTP/1.1\r\nHost: example\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		path, contentType, len(body), body)
}

// ChunkedPost 返回 chunked 编码的 POST 请求，每个 part 一块
func ChunkedPost(path string, parts ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\nHost: example\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n", path)
	for _, p := range parts {
		fmt.Fprintf(&b, "%x\r\n%s\r\n", len(p), p)
	}
	b.WriteString("0\r\n\r\n")
	return b.String()
}

// OversizedHeaderRequest 返回单个头部约 n 字节的 GET 请求
func OversizedHeaderRequest(path string, n int) string {
	return "GET " + path + " HTTP/1.1\r\nHost: example\r\nX-Pad: " + strings.Repeat("a", n) + "\r\nConnection: close\r\n\r\n"
}

// Malformed 非法请求行
const Malformed = "THIS IS NOT HTTP\r\n\r\n"
