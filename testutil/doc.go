// Copyright 2026 Gatewire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 gatewire 测试的共享工具和辅助函数。

# 概述

testutil 包为监听器、会话与门面包的测试提供统一的辅助能力，
避免各包重复实现拨号、证书生成、事件收集等测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual / WaitFor
  - 事件断言: CollectEvents / CollectUntil / AssertEventKinds
  - 线路辅助: RawExchange 发送原始字节并读到 EOF，ReadResponse 解析响应
  - TLS 辅助: SelfSignedBundle / ClientTLSConfig / H1Client / H2Client

# 子包

  - testutil/mocks: MockHandler（支持 panic、错误与阻塞闸门注入）、
    MockRecorder、MockPublisher
  - testutil/fixtures: 原始 HTTP/1.x 请求样例（GET、POST、chunked、超大头部）

# 使用示例

	h := mocks.NewMockHandler().WithBody("42")
	_ = srv.Handle("GET /users/{id}", h)
	resp := testutil.RawExchange(t, srv.Addr(), fixtures.GetRequest("/users/42"))
*/
package testutil
