package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/gatewire"
	"github.com/BaSui01/gatewire/api/handlers"
	"github.com/BaSui01/gatewire/config"
	"github.com/BaSui01/gatewire/internal/eventbus"
	"github.com/BaSui01/gatewire/internal/eventsink"
	"github.com/BaSui01/gatewire/internal/telemetry"
)

// =============================================================================
// 🖥️ App 结构
// =============================================================================

// App 是 gatewire 的主程序
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	gateway   *gatewire.Server
	health    *handlers.HealthHandler
	forwarder *eventsink.Forwarder
	otel      *telemetry.Providers

	registry      *prometheus.Registry
	metricsServer *http.Server
	metricsLn     net.Listener

	ready chan struct{}
}

// NewApp 组装网关、处理器与事件消费者，尚不监听任何端口
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		ready:    make(chan struct{}),
	}
	a.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	listener, err := listenerConfig(cfg)
	if err != nil {
		return nil, err
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger,
		telemetry.WithListener(cfg.Server.Addr, cfg.TLS.Mode))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	a.otel = otelProviders

	a.gateway, err = gatewire.New(listener,
		gatewire.WithLogger(logger),
		gatewire.WithRegisterer(a.registry),
		gatewire.WithMetricsNamespace(cfg.Metrics.Namespace),
		gatewire.WithEventBufferSize(cfg.Events.BufferSize),
		gatewire.WithMeterProvider(a.otel.MeterProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	a.health = handlers.NewHealthHandler(logger)
	if cfg.Events.Redis.Enabled {
		a.forwarder, err = eventsink.NewForwarder(forwarderConfig(cfg.Events.Redis), logger)
		if err != nil {
			return nil, err
		}
		a.health.RegisterCheck(handlers.NewPingCheck("redis", a.forwarder.Ping))
	}

	build := handlers.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
	if err := handlers.Register(a.gateway, a.health, build, int(cfg.Server.MaxBodyBytes)); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	return a, nil
}

// =============================================================================
// 🚀 运行
// =============================================================================

// Run starts every component and blocks until ctx is done or one of them
// fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// 事件消费者在网关启动前订阅，避免丢失首批事件
	if a.cfg.Events.Log {
		sub, err := a.gateway.Subscribe()
		if err != nil {
			return err
		}
		sink := eventbus.NewLogSink(a.logger)
		g.Go(func() error { return sink.Run(context.Background(), sub) })
	}
	if a.forwarder != nil {
		sub, err := a.gateway.Subscribe()
		if err != nil {
			return err
		}
		g.Go(func() error {
			err := a.forwarder.Run(context.Background(), sub)
			if cerr := a.forwarder.Close(); cerr != nil {
				a.logger.Warn("failed to close event forwarder", zap.Error(cerr))
			}
			return err
		})
	}

	if err := a.gateway.Start(); err != nil {
		_ = a.gateway.Shutdown(context.Background())
		_ = g.Wait()
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	if a.cfg.Metrics.Enabled {
		if err := a.startMetricsServer(); err != nil {
			_ = a.shutdown()
			_ = g.Wait()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		g.Go(func() error {
			if err := a.metricsServer.Serve(a.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	a.logger.Info("All servers started",
		zap.String("addr", a.gateway.Addr()),
		zap.String("metrics_addr", a.MetricsAddr()),
		zap.String("tls_mode", a.cfg.TLS.Mode),
	)

	close(a.ready)

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

// Ready 在所有监听端口绑定完成后关闭
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr 网关实际监听地址
func (a *App) Addr() string {
	return a.gateway.Addr()
}

// MetricsAddr 指标服务实际监听地址
func (a *App) MetricsAddr() string {
	if a.metricsLn == nil {
		return ""
	}
	return a.metricsLn.Addr().String()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (a *App) startMetricsServer() error {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return err
	}

	path := a.cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	handler := Chain(mux,
		Recovery(a.logger),
		AccessLog(a.logger),
		SecurityHeaders(),
	)

	a.metricsLn = ln
	a.metricsServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
	a.logger.Info("Metrics server started", zap.String("addr", ln.Addr().String()), zap.String("path", path))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// shutdown 依次关闭网关（排空连接并关闭事件总线）、指标服务器与遥测
func (a *App) shutdown() error {
	a.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()
	if a.cfg.Server.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := a.gateway.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := a.otel.Shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	a.logger.Info("Graceful shutdown completed")
	return errors.Join(errs...)
}

// =============================================================================
// 🔧 配置映射
// =============================================================================

// listenerConfig maps the file/env config onto the listener config and
// loads the TLS credentials.
func listenerConfig(cfg *config.Config) (gatewire.Config, error) {
	mode, ok := gatewire.ParseTLSMode(cfg.TLS.Mode)
	if !ok {
		return gatewire.Config{}, fmt.Errorf("unknown tls mode %q", cfg.TLS.Mode)
	}
	bundle, err := cfg.TLS.Bundle()
	if err != nil {
		return gatewire.Config{}, fmt.Errorf("failed to load tls credentials: %w", err)
	}

	s := cfg.Server
	return gatewire.Config{
		Addr:                 s.Addr,
		TLSMode:              mode,
		Bundle:               bundle,
		HandshakeTimeout:     s.HandshakeTimeout,
		ReadTimeout:          s.ReadTimeout,
		WriteTimeout:         s.WriteTimeout,
		IdleTimeout:          s.IdleTimeout,
		KeepAlive:            s.KeepAlive,
		MaxHeaderBytes:       s.MaxHeaderBytes,
		MaxBodyBytes:         s.MaxBodyBytes,
		MaxConcurrentStreams: s.MaxConcurrentStreams,
		MaxConnections:       s.MaxConnections,
		AcceptRate:           s.AcceptRate,
		AcceptBurst:          s.AcceptBurst,
		// 关闭超时由 App.shutdown 统一控制
		ShutdownTimeout: 0,
	}, nil
}

func forwarderConfig(r config.RedisConfig) eventsink.Config {
	c := eventsink.DefaultConfig()
	c.Addr = r.Addr
	c.Password = r.Password
	c.DB = r.DB
	if r.Channel != "" {
		c.Channel = r.Channel
	}
	c.StreamKey = r.StreamKey
	if r.StreamMaxLen > 0 {
		c.StreamMaxLen = r.StreamMaxLen
	}
	if r.PoolSize > 0 {
		c.PoolSize = r.PoolSize
	}
	c.MinIdleConns = r.MinIdleConns
	return c
}
