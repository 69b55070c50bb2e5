// Package channel provides bounded channels with a non-blocking producer side.
package channel

import (
	"sync"
	"sync/atomic"
)

// Stats 通道统计
type Stats struct {
	Sends    int64 `json:"sends"`
	Drops    int64 `json:"drops"`
	Capacity int   `json:"capacity"`
	Length   int   `json:"length"`
}

// DropOldest is a bounded channel whose Push never blocks: when the buffer is
// full the oldest queued value is discarded to make room.
type DropOldest[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
	onDrop func(T)

	sends atomic.Int64
	drops atomic.Int64
}

// NewDropOldest creates a channel with the given capacity (minimum 1).
// onDrop, if non-nil, is called synchronously for every discarded value.
func NewDropOldest[T any](capacity int, onDrop func(T)) *DropOldest[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &DropOldest[T]{ch: make(chan T, capacity), onDrop: onDrop}
}

// Push enqueues v. It reports false only when the channel is closed.
func (c *DropOldest[T]) Push(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.sends.Add(1)
	for {
		select {
		case c.ch <- v:
			return true
		default:
		}
		// 缓冲区已满：丢弃最旧的一个再重试
		select {
		case old := <-c.ch:
			c.drops.Add(1)
			if c.onDrop != nil {
				c.onDrop(old)
			}
		default:
		}
	}
}

// Chan returns the receive side. It is closed by Close.
func (c *DropOldest[T]) Chan() <-chan T {
	return c.ch
}

// Len returns the number of queued values.
func (c *DropOldest[T]) Len() int { return len(c.ch) }

// Cap returns the buffer capacity.
func (c *DropOldest[T]) Cap() int { return cap(c.ch) }

// Stats returns a snapshot of the counters.
func (c *DropOldest[T]) Stats() Stats {
	return Stats{
		Sends:    c.sends.Load(),
		Drops:    c.drops.Load(),
		Capacity: cap(c.ch),
		Length:   len(c.ch),
	}
}

// Close closes the channel. Queued values stay readable. Close is idempotent.
func (c *DropOldest[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Closed reports whether Close has been called.
func (c *DropOldest[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
