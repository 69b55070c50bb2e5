// Package eventbus fans lifecycle events out to subscribers.
//
// Publishing never blocks: every subscriber owns a bounded buffer and, when a
// slow consumer lets it fill up, the oldest pending event is discarded.
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/internal/channel"
	"github.com/BaSui01/gatewire/types"
)

// DefaultBufferSize 每个订阅者的默认缓冲区大小
const DefaultBufferSize = 256

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("eventbus: closed")

// DropHook is called for every event discarded from a subscriber buffer.
type DropHook func(ev types.LifecycleEvent)

// Option 总线选项
type Option func(*Bus)

// WithBufferSize 设置订阅者缓冲区大小
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithDropHook 设置丢弃回调（用于指标）
func WithDropHook(h DropHook) Option {
	return func(b *Bus) { b.onDrop = h }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l.With(zap.String("component", "eventbus"))
		}
	}
}

// Bus 事件总线
type Bus struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	closed     bool
	bufferSize int
	onDrop     DropHook
	logger     *zap.Logger

	published atomic.Int64
}

// New 创建事件总线
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: DefaultBufferSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber. It only sees events published after
// this call returns.
func (b *Bus) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	s := &Subscription{id: b.nextID, bus: b}
	s.ch = channel.NewDropOldest[types.LifecycleEvent](b.bufferSize, func(ev types.LifecycleEvent) {
		s.dropped.Add(1)
		if b.onDrop != nil {
			b.onDrop(ev)
		}
	})
	b.subs[s.id] = s
	b.logger.Debug("subscriber added", zap.Uint64("subscriber", s.id))
	return s, nil
}

// Publish delivers ev to every current subscriber without blocking.
// Publishing to a closed bus is a no-op.
func (b *Bus) Publish(ev types.LifecycleEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)
	for _, s := range b.subs {
		s.ch.Push(ev)
	}
}

// Subscribers 当前订阅者数量
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published 已发布事件总数
func (b *Bus) Published() int64 {
	return b.published.Load()
}

// Close closes every subscription channel. Buffered events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		s.ch.Close()
		delete(b.subs, id)
	}
	b.logger.Debug("event bus closed", zap.Int64("published", b.published.Load()))
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		s.ch.Close()
		delete(b.subs, id)
	}
}

// Subscription 订阅句柄
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      *channel.DropOldest[types.LifecycleEvent]
	once    sync.Once
	dropped atomic.Int64
}

// C returns the event channel. It is closed when the subscription or the bus
// is closed.
func (s *Subscription) C() <-chan types.LifecycleEvent {
	return s.ch.Chan()
}

// Dropped 因缓冲区满而丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.remove(s.id) })
}
