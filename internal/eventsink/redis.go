package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/internal/eventbus"
	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 📮 Redis 事件转发器
// =============================================================================

// ErrClosed 转发器已关闭
var ErrClosed = errors.New("eventsink: forwarder is closed")

// Config Redis 转发配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 发布频道
	Channel string `yaml:"channel" json:"channel"`

	// 可选的 Stream 键，非空时同时 XADD 保留历史
	StreamKey string `yaml:"stream_key" json:"stream_key"`

	// Stream 近似最大长度
	StreamMaxLen int64 `yaml:"stream_max_len" json:"stream_max_len"`

	// 单次发布超时
	PublishTimeout time.Duration `yaml:"publish_timeout" json:"publish_timeout"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认转发配置
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		Channel:             "gatewire:events",
		StreamMaxLen:        10000,
		PublishTimeout:      time.Second,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Stats 转发统计
type Stats struct {
	Forwarded uint64 `json:"forwarded"`
	Failed    uint64 `json:"failed"`
}

// Forwarder publishes lifecycle events as JSON to a Redis channel.
type Forwarder struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger

	forwarded atomic.Uint64
	failed    atomic.Uint64

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
}

// NewForwarder 创建转发器并检查连通性
func NewForwarder(config Config, logger *zap.Logger) (*Forwarder, error) {
	if config.Channel == "" {
		config.Channel = DefaultConfig().Channel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	f := &Forwarder{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "event_forwarder")),
		stop:   make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 {
		go f.healthCheckLoop()
	}

	f.logger.Info("event forwarder initialized",
		zap.String("addr", config.Addr),
		zap.String("channel", config.Channel),
		zap.String("stream_key", config.StreamKey),
	)
	return f, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Forward 发布单个事件
func (f *Forwarder) Forward(ctx context.Context, ev types.LifecycleEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		f.failed.Add(1)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if f.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.PublishTimeout)
		defer cancel()
	}

	if f.config.StreamKey == "" {
		err = f.redis.Publish(ctx, f.config.Channel, data).Err()
	} else {
		pipe := f.redis.TxPipeline()
		pipe.Publish(ctx, f.config.Channel, data)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: f.config.StreamKey,
			MaxLen: f.config.StreamMaxLen,
			Approx: f.config.StreamMaxLen > 0,
			Values: map[string]any{
				"kind":  ev.Kind.String(),
				"event": data,
			},
		})
		_, err = pipe.Exec(ctx)
	}
	if err != nil {
		f.failed.Add(1)
		return fmt.Errorf("event publish failed: %w", err)
	}

	f.forwarded.Add(1)
	return nil
}

// Run forwards events from sub until the subscription closes or ctx is
// done. Publish failures are logged and do not stop the loop.
func (f *Forwarder) Run(ctx context.Context, sub *eventbus.Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := f.Forward(ctx, ev); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				f.logger.Warn("failed to forward event",
					zap.String("kind", ev.Kind.String()),
					zap.String("connection_id", ev.ConnectionID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// Ping 检查 Redis 连接
func (f *Forwarder) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrClosed
	}
	return f.redis.Ping(ctx).Err()
}

// Stats 返回转发统计
func (f *Forwarder) Stats() Stats {
	return Stats{
		Forwarded: f.forwarded.Load(),
		Failed:    f.failed.Load(),
	}
}

// Close 关闭转发器
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	close(f.stop)
	f.logger.Info("closing event forwarder",
		zap.Uint64("forwarded", f.forwarded.Load()),
		zap.Uint64("failed", f.failed.Load()),
	)
	return f.redis.Close()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (f *Forwarder) healthCheckLoop() {
	ticker := time.NewTicker(f.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := f.Ping(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				cancel()
				return
			}
			f.logger.Error("redis health check failed", zap.Error(err))
		} else {
			f.logger.Debug("redis health check passed")
		}
		cancel()
	}
}
