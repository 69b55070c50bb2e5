// Copyright (c) Gatewire Authors.
// Licensed under the MIT License.

/*
Package types 提供 gatewire 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 router、session、
eventbus、server 以及根包 gatewire 提供统一的类型契约。

# 核心类型

  - Request / Response  解码后的请求与待编码的响应
  - Header              大小写不敏感、后写覆盖的单值头部
  - ConnectionID        每个连接唯一的标识（UUID v4）
  - Handler             路由处理器接口，HandlerFunc 为函数适配器
  - LifecycleEvent      ConnectionOpened / RequestObserved / ResponseSent / Error
  - Error / ErrorCode   结构化错误，携带 HTTP 状态码与会话阶段

# 主要能力

  - 响应构造：OK / NotFound / InternalServerError / WithBody / WithJSON
  - 线上不变量：Response.Normalize 保证非空响应体带精确 content-length
  - 错误工具链：AsError / GetErrorCode / IsErrorCode / StatusOf
  - 事件序列化：LifecycleEvent.MarshalJSON 供外部事件下沉使用
*/
package types
