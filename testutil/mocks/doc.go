// Package mocks 提供 gatewire 测试使用的模拟实现：
// MockHandler（types.Handler）、MockRecorder（会话度量）与
// MockPublisher（生命周期事件）。
package mocks
