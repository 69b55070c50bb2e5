// Package pool provides object pooling using sync.Pool.
package pool

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool.
type Pool[T any] struct {
	pool    sync.Pool
	newFunc func() T
	reset   func(*T)
	accept  func(T) bool

	// Metrics
	gets     atomic.Int64
	puts     atomic.Int64
	news     atomic.Int64
	resets   atomic.Int64
	discards atomic.Int64
}

// NewPool creates a new object pool.
func NewPool[T any](newFunc func() T, resetFunc func(*T)) *Pool[T] {
	p := &Pool[T]{
		newFunc: newFunc,
		reset:   resetFunc,
	}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// WithAccept sets a filter run on Put; objects it rejects are dropped
// instead of pooled.
func (p *Pool[T]) WithAccept(accept func(T) bool) *Pool[T] {
	p.accept = accept
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	p.puts.Add(1)
	if p.accept != nil && !p.accept(obj) {
		p.discards.Add(1)
		return
	}
	if p.reset != nil {
		p.resets.Add(1)
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Gets:     p.gets.Load(),
		Puts:     p.puts.Load(),
		News:     p.news.Load(),
		Resets:   p.resets.Load(),
		Discards: p.discards.Load(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Gets     int64 `json:"gets"`
	Puts     int64 `json:"puts"`
	News     int64 `json:"news"`
	Resets   int64 `json:"resets"`
	Discards int64 `json:"discards"`
}

// HitRate returns the cache hit rate.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// =============================================================================
// 连接缓冲池
// =============================================================================

// BufferSize 连接读写缓冲区大小
const BufferSize = 4096

// MaxPooledBufferSize 超过此容量的请求体缓冲区不回池
const MaxPooledBufferSize = 64 << 10

// ByteBufferPool provides pooled byte buffers for request bodies.
var ByteBufferPool = NewPool(
	func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, BufferSize))
	},
	func(b **bytes.Buffer) {
		(*b).Reset()
	},
).WithAccept(func(b *bytes.Buffer) bool {
	return b.Cap() <= MaxPooledBufferSize
})

// 归还前 Reset(nil)，避免池中对象持有已关闭的连接
var readerPool = NewPool(
	func() *bufio.Reader { return bufio.NewReaderSize(nil, BufferSize) },
	func(r **bufio.Reader) { (*r).Reset(nil) },
)

var writerPool = NewPool(
	func() *bufio.Writer { return bufio.NewWriterSize(nil, BufferSize) },
	func(w **bufio.Writer) { (*w).Reset(nil) },
)

// GetReader returns a pooled bufio.Reader reading from r.
func GetReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get()
	br.Reset(r)
	return br
}

// PutReader returns br to the pool. br must not be used afterwards.
func PutReader(br *bufio.Reader) {
	if br != nil {
		readerPool.Put(br)
	}
}

// GetWriter returns a pooled bufio.Writer writing to w.
func GetWriter(w io.Writer) *bufio.Writer {
	bw := writerPool.Get()
	bw.Reset(w)
	return bw
}

// PutWriter returns bw to the pool. Unflushed data is discarded.
func PutWriter(bw *bufio.Writer) {
	if bw != nil {
		writerPool.Put(bw)
	}
}

// ReaderStats 读缓冲池统计
func ReaderStats() PoolStats { return readerPool.Stats() }

// WriterStats 写缓冲池统计
func WriterStats() PoolStats { return writerPool.Stats() }
