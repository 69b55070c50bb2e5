package pool

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Stats(t *testing.T) {
	p := NewPool(func() []int { return make([]int, 0, 4) }, func(s *[]int) { *s = (*s)[:0] })

	s := p.Get()
	s = append(s, 1, 2)
	p.Put(s)
	_ = p.Get()

	st := p.Stats()
	assert.Equal(t, int64(2), st.Gets)
	assert.Equal(t, int64(1), st.Puts)
	assert.Equal(t, int64(1), st.Resets)
	assert.GreaterOrEqual(t, st.News, int64(1))
}

func TestPoolStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, PoolStats{}.HitRate())
	assert.Equal(t, 0.75, PoolStats{Gets: 4, News: 1}.HitRate())
}

func TestByteBufferPool_ResetOnPut(t *testing.T) {
	b := ByteBufferPool.Get()
	b.WriteString("payload")
	ByteBufferPool.Put(b)
	assert.Equal(t, 0, b.Len())
}

func TestPool_AcceptRejects(t *testing.T) {
	p := NewPool(func() []byte { return make([]byte, 0, 8) }, func(b *[]byte) { *b = (*b)[:0] }).
		WithAccept(func(b []byte) bool { return cap(b) <= 8 })

	p.Put(make([]byte, 0, 8))
	p.Put(make([]byte, 0, 1024))

	st := p.Stats()
	assert.Equal(t, int64(2), st.Puts)
	assert.Equal(t, int64(1), st.Resets)
	assert.Equal(t, int64(1), st.Discards)
}

func TestByteBufferPool_DropsOversized(t *testing.T) {
	before := ByteBufferPool.Stats().Discards

	b := ByteBufferPool.Get()
	b.Grow(MaxPooledBufferSize + 1)
	b.WriteString("large upload")
	ByteBufferPool.Put(b)

	assert.Equal(t, before+1, ByteBufferPool.Stats().Discards)
	// 未回池的缓冲区不会被 Reset
	assert.Equal(t, "large upload", b.String())
}

func TestReaderPool(t *testing.T) {
	br := GetReader(strings.NewReader("hello"))
	data, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	PutReader(br)
	PutReader(nil)

	br = GetReader(strings.NewReader("again"))
	data, err = io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))
	assert.GreaterOrEqual(t, ReaderStats().Gets, int64(2))
}

func TestWriterPool(t *testing.T) {
	var out bytes.Buffer
	bw := GetWriter(&out)
	_, err := bw.WriteString("written")
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	PutWriter(bw)
	PutWriter(nil)

	assert.Equal(t, "written", out.String())
	assert.GreaterOrEqual(t, WriterStats().Puts, int64(1))
}
