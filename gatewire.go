// Package gatewire is a connection-oriented HTTP server front end. It
// accepts TCP connections, detects TLS from the first bytes, negotiates
// HTTP/1.1 or HTTP/2 through ALPN, and dispatches every request through an
// immutable route table behind a per-request fault barrier.
//
// Usage:
//
//	srv, err := gatewire.New(gatewire.DefaultConfig(), gatewire.WithLogger(logger))
//	srv.HandleFunc("GET /users/{id}", func(ctx context.Context, id gatewire.ConnectionID, req *gatewire.Request) (*gatewire.Response, error) {
//		return gatewire.OK().WithText(req.Param("id")), nil
//	})
//	err = srv.ListenAndServe(ctx)
//
// Routes must be registered before Start; the table is frozen when the
// listener starts and shared read-only by every connection.
package gatewire

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/internal/eventbus"
	"github.com/BaSui01/gatewire/internal/metrics"
	"github.com/BaSui01/gatewire/internal/router"
	"github.com/BaSui01/gatewire/internal/server"
	"github.com/BaSui01/gatewire/internal/session"
	"github.com/BaSui01/gatewire/internal/tlsutil"
	"github.com/BaSui01/gatewire/types"
)

// Re-exported types so callers never need to import internal packages.
type (
	Request          = types.Request
	Response         = types.Response
	Header           = types.Header
	ConnectionID     = types.ConnectionID
	Handler          = types.Handler
	HandlerFunc      = types.HandlerFunc
	LifecycleEvent   = types.LifecycleEvent
	EventKind        = types.EventKind
	Error            = types.Error
	Config           = server.Config
	TLSMode          = session.TLSMode
	CredentialBundle = tlsutil.CredentialBundle
	Subscription     = eventbus.Subscription
)

// TLS modes.
const (
	TLSDisabled = session.TLSDisabled
	TLSOptional = session.TLSOptional
	TLSRequired = session.TLSRequired
)

// Lifecycle event kinds.
const (
	EventConnectionOpened = types.EventConnectionOpened
	EventRequestObserved  = types.EventRequestObserved
	EventResponseSent     = types.EventResponseSent
	EventError            = types.EventError
)

// Errors.
var (
	ErrInvalidPattern = router.ErrInvalidPattern
	ErrDuplicateRoute = router.ErrDuplicateRoute
	ErrNilHandler     = router.ErrNilHandler
	ErrRouterFrozen   = router.ErrRouterFrozen
	ErrInvalidConfig  = server.ErrInvalidConfig
	ErrServerClosed   = server.ErrServerClosed
)

// Response constructors.
var (
	NewResponse         = types.NewResponse
	OK                  = types.OK
	BadRequest          = types.BadRequest
	Unauthorized        = types.Unauthorized
	NotFound            = types.NotFound
	InternalServerError = types.InternalServerError
	NewRequest          = types.NewRequest
)

// DefaultConfig returns the default listener configuration.
func DefaultConfig() Config { return server.DefaultConfig() }

// ParseTLSMode parses disabled|optional|required.
func ParseTLSMode(s string) (TLSMode, bool) { return session.ParseTLSMode(s) }

// LoadCredentialBundle loads a PEM certificate and key.
func LoadCredentialBundle(certFile, keyFile string, alpn []string) (*CredentialBundle, error) {
	return tlsutil.LoadCredentialBundle(certFile, keyFile, alpn)
}

// SelfSignedBundle generates a throwaway certificate for hosts.
func SelfSignedBundle(alpn []string, hosts ...string) (*CredentialBundle, error) {
	return tlsutil.SelfSigned(alpn, hosts...)
}

// =============================================================================
// Options
// =============================================================================

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	namespace  string
	bufferSize int
	meters     metric.MeterProvider
}

// Option configures a Server.
type Option func(*options)

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the server's Prometheus metrics on reg. Without
// it the metrics live in a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithMetricsNamespace overrides the metric name prefix.
func WithMetricsNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithMeterProvider records request and connection measurements through mp
// as well. Without it the global OTel MeterProvider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meters = mp }
}

// WithEventBufferSize sets the per-subscriber event buffer.
func WithEventBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// =============================================================================
// Server
// =============================================================================

// Server wires the route table, event bus, metrics and listener together.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	router  *router.Router
	bus     *eventbus.Bus
	metrics *metrics.Collector

	mu      sync.Mutex
	manager *server.Manager
	closed  bool
}

// New validates cfg and creates a server. Nothing listens until Start.
func New(cfg Config, opts ...Option) (*Server, error) {
	o := options{namespace: "gatewire"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var collectorOpts []metrics.Option
	if o.meters != nil {
		collectorOpts = append(collectorOpts, metrics.WithMeterProvider(o.meters))
	}
	collector := metrics.NewCollector(o.namespace, o.registerer, o.logger, collectorOpts...)
	busOpts := []eventbus.Option{
		eventbus.WithLogger(o.logger),
		eventbus.WithDropHook(func(types.LifecycleEvent) { collector.RecordEventDropped() }),
	}
	if o.bufferSize > 0 {
		busOpts = append(busOpts, eventbus.WithBufferSize(o.bufferSize))
	}

	return &Server{
		cfg:     cfg,
		logger:  o.logger,
		router:  router.New(),
		bus:     eventbus.New(busOpts...),
		metrics: collector,
	}, nil
}

// Handle registers h for pattern ("[METHOD ]/path/{param}").
func (s *Server) Handle(pattern string, h Handler) error {
	return s.router.Register(pattern, h)
}

// HandleFunc registers a function handler.
func (s *Server) HandleFunc(pattern string, f func(ctx context.Context, id ConnectionID, req *Request) (*Response, error)) error {
	return s.router.Register(pattern, types.HandlerFunc(f))
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return s.router.Routes()
}

// Subscribe returns a new lifecycle event subscription. Events published
// before the call are not replayed.
func (s *Server) Subscribe() (*Subscription, error) {
	return s.bus.Subscribe()
}

// Start freezes the route table and starts accepting connections. Bind
// errors are returned synchronously.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.manager != nil {
		return server.ErrAlreadyStarted
	}

	s.router.Freeze()
	m, err := server.NewManager(s.cfg, server.Deps{
		Router:   s.router,
		Events:   s.bus,
		Recorder: s.metrics,
	}, s.logger)
	if err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}
	s.manager = m

	s.logger.Info("gatewire started",
		zap.String("addr", m.Addr()),
		zap.Int("routes", len(s.router.Routes())),
	)
	return nil
}

// Addr returns the bound listener address, or the configured one before
// Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager != nil {
		return s.manager.Addr()
	}
	return s.cfg.Addr
}

// ActiveConnections returns the number of live sessions.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	m := s.manager
	s.mu.Unlock()
	if m == nil {
		return 0
	}
	return m.ActiveSessions()
}

// Shutdown stops accepting, drains in-flight work and closes the event
// bus. The context bounds the drain; on expiry remaining connections are
// force-closed and the context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	m := s.manager
	s.mu.Unlock()

	var err error
	if m != nil {
		err = m.Shutdown(ctx)
	}
	s.bus.Close()
	if err != nil {
		return fmt.Errorf("gatewire: shutdown: %w", err)
	}
	return nil
}

// ListenAndServe starts the server and blocks until ctx is done, then
// shuts down using the configured ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(context.Background())
}
