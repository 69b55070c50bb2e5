/*
包 session 实现单个连接的完整生命周期。

# 状态机

	Accepted → Classified → [Upgrading → Upgraded] → ProtocolSelected → Serving → Closed

每次迁移都按迁移表校验，任意状态均可直接进入 Closed。
每个会话恰好到达一次 Closed，并在此时释放连接与计数。

# 协议

  - HTTP/1.1：net/http 的请求解析 + 最小响应写出器；默认一次交换后关闭，
    开启 KeepAlive 后循环处理，直到客户端要求关闭、空闲超时或进入排空。
  - HTTP/2：golang.org/x/net/http2 的 Server.ServeConn，每个流在编解码器的
    goroutine 中调用同一条 dispatch 路径；排空时发送 GOAWAY。

# 故障隔离

dispatch 在处理器调用外层使用 recover，panic、返回 error 或返回 nil 响应
均转换为固定的 500 响应，并以 handler 阶段的 Error 事件上报。
*/
package session
