package client

import (
	"context"
	"net/http"
)

type retryKey struct{}

// MarkRetry returns a copy of req flagged as the one permitted re-issue.
func MarkRetry(req *http.Request) *http.Request {
	return req.Clone(context.WithValue(req.Context(), retryKey{}, true))
}

// IsRetry reports whether req was produced by MarkRetry.
func IsRetry(req *http.Request) bool {
	v, _ := req.Context().Value(retryKey{}).(bool)
	return v
}
