// 版权所有 2024 Gatewire Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的连接与请求指标采集能力。

# 概述

Collector 通过 promauto.With(Registerer) 注册全部指标，Registerer
可注入，测试中使用独立的 prometheus.NewRegistry() 避免重复注册。
所有指标按 namespace 隔离。

# 主要能力

  - 连接指标：按 transport（plain/tls）与协商协议计数、活跃连接 Gauge、
    连接存活时长 Histogram。
  - 请求指标：请求总数、耗时、请求/响应体大小，按 protocol/method/route
    分组，route 使用路由模式以控制基数，状态码归类为 2xx/3xx/4xx/5xx。
  - 故障指标：处理器 panic 计数、按阶段（accept/classify/handshake/
    decode/handler/write）分组的连接错误计数。
  - 事件指标：慢订阅者导致的事件丢弃计数。
*/
package metrics
