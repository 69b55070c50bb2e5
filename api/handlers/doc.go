// Copyright (c) Gatewire Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 gatewire 内置端点的处理器实现。

# 概述

所有处理器均实现 types.Handler，注册到 gatewire 的路由表后
由连接会话调用，与具体的线路协议（HTTP/1.1、HTTP/2）无关。

# 核心类型

  - HealthHandler  存活与就绪检查（/healthz, /readyz）及版本信息
  - HealthCheck    可插拔健康检查接口（Redis 等）
  - EchoHandler    回显请求体与请求元信息
  - Envelope       统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo      结构化错误信息

# 主要能力

  - 统一响应格式：JSON / Success / Failure 辅助函数
  - types.ErrorCode → HTTP 状态码映射
  - Register 一次性注册全部内置端点
*/
package handlers
