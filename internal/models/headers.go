package models

import (
	"net/http"
	"strings"
)

// Header is a single HTTP header name/value pair
type Header struct {
	Key   string
	Value string
}

// Headers keeps insertion order so callers can replay them exactly
type Headers []Header

// Get returns the value for key, matched case-insensitively
func (h Headers) Get(key string) string {
	for _, kv := range h {
		if strings.EqualFold(kv.Key, key) {
			return kv.Value
		}
	}
	return ""
}

// Set replaces the value for key, or appends it when missing.
// Empty values are ignored.
func (h Headers) Set(key, value string) Headers {
	if value == "" {
		return h
	}
	for i, kv := range h {
		if strings.EqualFold(kv.Key, key) {
			out := h.Clone()
			out[i].Value = value
			return out
		}
	}
	return append(h.Clone(), Header{Key: key, Value: value})
}

// Clone returns an independent copy
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Map flattens the headers for players that take a plain map
func (h Headers) Map() map[string]string {
	m := make(map[string]string, len(h))
	for _, kv := range h {
		m[kv.Key] = kv.Value
	}
	return m
}

// Apply copies the headers onto an outgoing request; Host is special-cased
// because net/http ignores it in the header map.
func (h Headers) Apply(req *http.Request) {
	for _, kv := range h {
		if strings.EqualFold(kv.Key, "Host") {
			req.Host = kv.Value
			continue
		}
		req.Header.Set(kv.Key, kv.Value)
	}
}
