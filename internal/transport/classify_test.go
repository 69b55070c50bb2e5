package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeWith 返回服务端连接，客户端写入 data 后关闭
func pipeWith(data []byte) net.Conn {
	server, client := net.Pipe()
	go func() {
		_, _ = client.Write(data)
		_ = client.Close()
	}()
	return server
}

func TestIsTLSPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   bool
	}{
		{"tls1.0", []byte{0x16, 0x03, 0x01}, true},
		{"tls1.2 record", []byte{0x16, 0x03, 0x03, 0x00}, true},
		{"ssl3", []byte{0x16, 0x03, 0x00}, false},
		{"future minor", []byte{0x16, 0x03, 0x04}, false},
		{"alert record", []byte{0x15, 0x03, 0x01}, false},
		{"http", []byte("GET"), false},
		{"short", []byte{0x16, 0x03}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTLSPrefix(tt.prefix))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		requireTLS bool
		wantKind   Kind
		wantErr    error
	}{
		{"plaintext", []byte("GET / HTTP/1.1\r\n\r\n"), false, KindPlain, nil},
		{"tls", []byte{0x16, 0x03, 0x01, 0x02, 0x00}, false, KindTLS, nil},
		{"tls required ok", []byte{0x16, 0x03, 0x03, 0x00}, true, KindTLS, nil},
		{"tls required plaintext", []byte("GET / HTTP/1.1\r\n"), true, KindPlain, ErrNotTLS},
		{"one byte", []byte{0x16}, false, 0, ErrTruncatedPrefix},
		{"two bytes", []byte{0x16, 0x03}, false, 0, ErrTruncatedPrefix},
		{"empty", nil, false, 0, ErrShortPrefix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := pipeWith(tt.data)
			defer conn.Close()

			kind, pc, err := Classify(conn, bufio.NewReader(conn), tt.requireTLS)
			require.NotNil(t, pc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestClassify_ReadDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	require.NoError(t, server.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, _, err := Classify(server, bufio.NewReader(server), false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrShortPrefix))
	var ne net.Error
	assert.True(t, errors.As(err, &ne) && ne.Timeout())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "plain", KindPlain.String())
	assert.Equal(t, "tls", KindTLS.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

// 窥视不消费：分类后读取 PeekedConn 得到的字节与原始字节完全一致
func TestProperty_PeekDoesNotConsume(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("peek then read equals original", prop.ForAll(
		func(data []byte, requireTLS bool) bool {
			conn := pipeWith(data)
			defer conn.Close()

			_, pc, _ := Classify(conn, bufio.NewReader(conn), requireTLS)
			got, err := io.ReadAll(pc)
			if err != nil {
				return false
			}
			return bytes.Equal(got, data)
		},
		gen.SliceOf(gen.UInt8()),
		gen.Bool(),
	))

	properties.Property("tls-looking prefixes classify as tls", prop.ForAll(
		func(minor uint8, rest []byte) bool {
			data := append([]byte{0x16, 0x03, 1 + minor%3}, rest...)
			conn := pipeWith(data)
			defer conn.Close()

			kind, pc, err := Classify(conn, bufio.NewReader(conn), true)
			if err != nil || kind != KindTLS {
				return false
			}
			got, err := io.ReadAll(pc)
			return err == nil && bytes.Equal(got, data)
		},
		gen.UInt8(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
