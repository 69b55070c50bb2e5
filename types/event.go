package types

import (
	"encoding/json"
	"time"
)

// EventKind 生命周期事件类型
type EventKind int

const (
	// EventConnectionOpened 连接已接受
	EventConnectionOpened EventKind = iota + 1
	// EventRequestObserved 请求已解码
	EventRequestObserved
	// EventResponseSent 响应已写出
	EventResponseSent
	// EventError 连接级或请求级错误
	EventError
)

// String 实现 fmt.Stringer
func (k EventKind) String() string {
	switch k {
	case EventConnectionOpened:
		return "connection_opened"
	case EventRequestObserved:
		return "request_observed"
	case EventResponseSent:
		return "response_sent"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Session stages reported on Error events.
const (
	StageAccept    = "accept"
	StageClassify  = "classify"
	StageHandshake = "handshake"
	StageDecode    = "decode"
	StageHandler   = "handler"
	StageWrite     = "write"
)

// LifecycleEvent 生命周期通知。按 Kind 只填充对应的载荷字段：
// ConnectionOpened → RemoteAddr；RequestObserved → Request；
// ResponseSent → Response（Request 可选）；Error → Err/Stage。
type LifecycleEvent struct {
	Kind         EventKind
	ConnectionID ConnectionID
	Time         time.Time
	RemoteAddr   string
	Request      *Request
	Response     *Response
	Stage        string
	Err          error
}

// ConnectionOpened 构造连接事件
func ConnectionOpened(id ConnectionID, remoteAddr string) LifecycleEvent {
	return LifecycleEvent{Kind: EventConnectionOpened, ConnectionID: id, Time: time.Now(), RemoteAddr: remoteAddr}
}

// RequestObserved 构造请求事件，附带请求快照
func RequestObserved(id ConnectionID, req *Request) LifecycleEvent {
	return LifecycleEvent{Kind: EventRequestObserved, ConnectionID: id, Time: time.Now(), Request: req.Clone()}
}

// ResponseSent 构造响应事件
func ResponseSent(id ConnectionID, req *Request, resp *Response) LifecycleEvent {
	return LifecycleEvent{Kind: EventResponseSent, ConnectionID: id, Time: time.Now(), Request: req.Clone(), Response: resp.Clone()}
}

// ErrorEvent 构造错误事件
func ErrorEvent(id ConnectionID, stage string, err error) LifecycleEvent {
	return LifecycleEvent{Kind: EventError, ConnectionID: id, Time: time.Now(), Stage: stage, Err: err}
}

type eventJSON struct {
	Kind         string       `json:"kind"`
	ConnectionID ConnectionID `json:"connection_id"`
	Time         time.Time    `json:"time"`
	RemoteAddr   string       `json:"remote_addr,omitempty"`
	Method       string       `json:"method,omitempty"`
	Path         string       `json:"path,omitempty"`
	Protocol     string       `json:"protocol,omitempty"`
	Status       int          `json:"status,omitempty"`
	BodyBytes    int          `json:"body_bytes,omitempty"`
	Stage        string       `json:"stage,omitempty"`
	Error        string       `json:"error,omitempty"`
	ErrorCode    ErrorCode    `json:"error_code,omitempty"`
}

// MarshalJSON flattens the event for sinks.
func (e LifecycleEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Kind:         e.Kind.String(),
		ConnectionID: e.ConnectionID,
		Time:         e.Time,
		RemoteAddr:   e.RemoteAddr,
		Stage:        e.Stage,
	}
	if e.Request != nil {
		out.Method = e.Request.Method
		out.Path = e.Request.Path
		out.Protocol = e.Request.Protocol
	}
	if e.Response != nil {
		out.Status = e.Response.Status
		out.BodyBytes = len(e.Response.Body)
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
		out.ErrorCode = GetErrorCode(e.Err)
	}
	return json.Marshal(out)
}
