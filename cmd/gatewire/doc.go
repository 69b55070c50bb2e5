// Copyright (c) Gatewire Authors.
// Licensed under the MIT License.

/*
Package main 提供 gatewire 服务端程序入口。

# 概述

cmd/gatewire 是 gatewire 的可执行入口，提供 serve、version、health
三个子命令。程序支持 YAML 配置文件加载、结构化日志（zap）、
Prometheus 指标采集、OpenTelemetry 追踪以及 Redis 事件转发。

# 核心类型

  - App  主程序，持有网关、指标服务器与事件消费者，由 errgroup 统一管理

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 内置端点：/healthz、/readyz、/version、POST /echo
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus），带 Recovery 与访问日志中间件
  - 事件消费：日志输出与 Redis 发布/Stream
  - 优雅关闭：信号监听 → 停止接受 → 排空连接 → 关闭事件消费 → 关闭 Metrics
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
