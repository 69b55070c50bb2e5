package types

import (
	"net/http"
	"sort"
	"strings"
)

// Header 是大小写不敏感的单值头部集合，键统一以小写存储，
// 重复设置时后写入者生效。
type Header map[string]string

// Get 返回指定键的值
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置键值（覆盖已有值）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定键
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Has 检查键是否存在
func (h Header) Has(key string) bool {
	if h == nil {
		return false
	}
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Clone 返回头部的浅拷贝
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys 返回排序后的键列表
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HeaderFromHTTP converts a multi-valued net/http header, keeping the last
// value of every key.
func HeaderFromHTTP(src http.Header) Header {
	h := make(Header, len(src))
	for k, vs := range src {
		if len(vs) == 0 {
			continue
		}
		h.Set(k, vs[len(vs)-1])
	}
	return h
}

// WriteTo copies the header into a net/http header.
func (h Header) WriteTo(dst http.Header) {
	for k, v := range h {
		dst.Set(k, v)
	}
}
