package types

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Response 出站响应
type Response struct {
	Status  int    `json:"status"`
	Headers Header `json:"headers,omitempty"`
	Body    []byte `json:"-"`
}

// NewResponse 创建指定状态码的空响应
func NewResponse(status int) *Response {
	return &Response{
		Status:  status,
		Headers: make(Header),
	}
}

// OK 返回 200 响应
func OK() *Response { return NewResponse(http.StatusOK) }

// BadRequest 返回 400 响应
func BadRequest() *Response { return NewResponse(http.StatusBadRequest) }

// Unauthorized 返回 401 响应
func Unauthorized() *Response { return NewResponse(http.StatusUnauthorized) }

// NotFound 返回 404 响应
func NotFound() *Response { return NewResponse(http.StatusNotFound) }

// MethodNotAllowed 返回 405 响应
func MethodNotAllowed() *Response { return NewResponse(http.StatusMethodNotAllowed) }

// InternalServerError 返回 500 响应
func InternalServerError() *Response { return NewResponse(http.StatusInternalServerError) }

// WithHeader 设置头部并返回自身
func (r *Response) WithHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = make(Header)
	}
	r.Headers.Set(key, value)
	return r
}

// WithBody 设置响应体并同步 content-length
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r.WithHeader("content-length", strconv.Itoa(len(body)))
}

// WithText 设置纯文本响应体
func (r *Response) WithText(text string) *Response {
	return r.WithHeader("content-type", "text/plain; charset=utf-8").WithBody([]byte(text))
}

// WithJSON 将 v 编码为 JSON 响应体
func (r *Response) WithJSON(v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return r.WithHeader("content-type", "application/json").WithBody(data), nil
}

// StatusText 返回状态码对应的原因短语
func (r *Response) StatusText() string {
	return http.StatusText(r.Status)
}

// Normalize enforces the wire invariants: a valid status, and an exact
// content-length header whenever the body is non-empty.
func (r *Response) Normalize() {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	if r.Headers == nil {
		r.Headers = make(Header)
	}
	if len(r.Body) > 0 {
		r.Headers.Set("content-length", strconv.Itoa(len(r.Body)))
	} else {
		r.Headers.Del("content-length")
	}
}

// Clone returns a copy with independent headers. The body slice is shared.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = r.Headers.Clone()
	return &out
}
