package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/gatewire/types"
)

func TestMockHandler_Responses(t *testing.T) {
	ctx := context.Background()
	id := types.NewConnectionID()
	req := types.NewRequest("GET", "/x")

	h := NewMockHandler().WithStatus(201).WithBody("made").WithHeader("x-a", "1")
	resp, err := h.ServeWire(ctx, id, req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "made", string(resp.Body))
	assert.Equal(t, "1", resp.Headers.Get("x-a"))

	boom := errors.New("boom")
	_, err = NewMockHandler().WithError(boom).ServeWire(ctx, id, req)
	assert.ErrorIs(t, err, boom)

	resp, err = NewMockHandler().WithNilResponse().ServeWire(ctx, id, req)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = NewMockHandler().WithPanic("kaboom").ServeWire(ctx, id, req)
	})

	assert.Equal(t, 1, h.CallCount())
	assert.Equal(t, id, h.LastCall().ConnectionID)
	assert.Equal(t, "/x", h.Calls()[0].Request.Path)
	h.Reset()
	assert.Nil(t, h.LastCall())
}

func TestMockHandler_Gate(t *testing.T) {
	h := NewMockHandler().WithGate(2)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := h.ServeWire(context.Background(), types.NewConnectionID(), types.NewRequest("GET", "/"))
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-h.Entered():
		case <-time.After(time.Second):
			t.Fatal("handler not entered")
		}
	}
	select {
	case <-done:
		t.Fatal("handler returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	h.Release()
	h.Release()
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gated := NewMockHandler().WithGate(1)
	cancel()
	_, err := gated.ServeWire(ctx, types.NewConnectionID(), types.NewRequest("GET", "/"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockRecorderAndPublisher(t *testing.T) {
	r := NewMockRecorder()
	r.ConnectionOpened()
	r.RecordProtocol("tls", "HTTP/2.0")
	r.RecordRequest("HTTP/2.0", "GET", "GET /", 200, time.Millisecond, 0, 2)
	r.RecordHandlerPanic("GET /")
	r.RecordSessionError("decode")
	r.ConnectionClosed(time.Second)

	opened, closed := r.Connections()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, r.Protocol("tls", "HTTP/2.0"))
	assert.Equal(t, []RecordedRequest{{Protocol: "HTTP/2.0", Method: "GET", Route: "GET /", Status: 200}}, r.Requests())
	assert.Equal(t, 1, r.Panics("GET /"))
	assert.Equal(t, 1, r.SessionErrors("decode"))

	p := NewMockPublisher()
	a, b := types.NewConnectionID(), types.NewConnectionID()
	p.Publish(types.ConnectionOpened(a, ""))
	p.Publish(types.ConnectionOpened(b, ""))
	p.Publish(types.ErrorEvent(a, "write", errors.New("x")))
	assert.Len(t, p.Events(), 3)
	assert.Len(t, p.ByConnection(a), 2)
	assert.Equal(t, 2, p.Count(types.EventConnectionOpened))
}
