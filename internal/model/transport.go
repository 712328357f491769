package model

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"widget-backend/pkg/logger"
)

var _ http.RoundTripper = (*DebugTransport)(nil)

var sensitiveHeaders = []string{"authorization", "x-api-key", "x-auth-token", "cookie"}

// DebugTransport 在 debug 级别记录提供方请求，敏感请求头会被隐藏
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Errorf("[provider debug] request to %s failed: %v", req.URL.Host, err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	logger.Debugf("[provider debug] %s %s", req.Method, req.URL.String())
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			logger.Debugf("[provider debug]   %s: [REDACTED]", name)
			continue
		}
		logger.Debugf("[provider debug]   %s: %s", name, strings.Join(values, ", "))
	}

	if req.Body == nil {
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		logger.Errorf("[provider debug] failed to read request body: %v", err)
		return
	}
	// 恢复请求体，以免影响实际请求
	req.Body = io.NopCloser(bytes.NewReader(body))
	logger.Debugf("[provider debug] body (%d bytes): %s", len(body), string(body))
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
