// Package config 提供 gatewire 的配置管理功能。
//
// 配置来源按优先级依次为：默认值、YAML 文件、环境变量（前缀 GATEWIRE）。
// 监听、TLS、事件、指标、日志与遥测各自一个小节。
package config
