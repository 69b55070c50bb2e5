// 版权所有 2024 Gatewire Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供监听器与连接生命周期管理：接受循环、并发上限、
接受限流与优雅排空。

# 概述

Manager 持有 net.Listener，顺序接受连接并为每个连接启动一个
session.Session。所有会话共享同一个冻结后的路由表、事件发布者
与指标记录器。

# 核心类型

  - Manager：连接管理器，提供 Start/Serve/Shutdown/WaitForShutdown
    等生命周期方法，以及 Addr/IsRunning/ActiveSessions 查询。
  - Config：监听配置，包含地址、TLS 模式与凭据、各阶段超时、
    请求大小限制、最大连接数、接受速率与关闭超时。
  - Deps：会话共享的路由、事件与指标依赖。

# 主要能力

  - 并发上限：MaxConnections 通过 semaphore 控制，名额在会话关闭时释放
  - 接受限流：AcceptRate/AcceptBurst 基于 x/time/rate 令牌桶
  - 错误退避：Accept 失败时从 5ms 指数退避到 1s，循环不中断
  - 优雅关闭：Shutdown 先关闭监听器，再对所有会话调用 Drain，
    等待全部结束；超时后强制关闭剩余连接并返回 context 错误
  - 信号处理：WaitForShutdown 监听 SIGINT/SIGTERM
*/
package server
