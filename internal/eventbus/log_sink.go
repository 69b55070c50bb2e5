package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/types"
)

// LogSink 将生命周期事件写入结构化日志
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 创建日志 sink
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "event_log"))}
}

// Run drains sub until it is closed or ctx is done.
func (s *LogSink) Run(ctx context.Context, sub *Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.Write(ev)
		}
	}
}

// Write logs a single event.
func (s *LogSink) Write(ev types.LifecycleEvent) {
	fields := []zap.Field{
		zap.String("event", ev.Kind.String()),
		zap.String("connection_id", ev.ConnectionID.String()),
	}
	if ev.RemoteAddr != "" {
		fields = append(fields, zap.String("remote_addr", ev.RemoteAddr))
	}
	if ev.Request != nil {
		fields = append(fields,
			zap.String("method", ev.Request.Method),
			zap.String("path", ev.Request.Path),
			zap.String("protocol", ev.Request.Protocol),
		)
	}
	if ev.Response != nil {
		fields = append(fields, zap.Int("status", ev.Response.Status), zap.Int("body_bytes", len(ev.Response.Body)))
	}

	if ev.Kind == types.EventError {
		fields = append(fields, zap.String("stage", ev.Stage), zap.Error(ev.Err))
		s.logger.Warn("connection event", fields...)
		return
	}
	s.logger.Info("connection event", fields...)
}
