package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// Kind classifies a failure for the views that report it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindRequest
	KindServer
	KindNetwork
	KindRefresh
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindValidation:     "validation",
	KindAuthentication: "authentication",
	KindNotFound:       "not_found",
	KindRequest:        "request",
	KindServer:         "server",
	KindNetwork:        "network",
	KindRefresh:        "refresh",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is checks against any error the client returns.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("not authenticated")
	ErrNotFound       = errors.New("not found")
	ErrRequest        = errors.New("request rejected")
	ErrServer         = errors.New("server error")
	ErrNetwork        = errors.New("network error")
	ErrRefresh        = errors.New("session refresh failed")
)

var sentinels = map[Kind]error{
	KindValidation:     ErrValidation,
	KindAuthentication: ErrAuthentication,
	KindNotFound:       ErrNotFound,
	KindRequest:        ErrRequest,
	KindServer:         ErrServer,
	KindNetwork:        ErrNetwork,
	KindRefresh:        ErrRefresh,
}

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Kind maps the status code onto the taxonomy.
func (e *HTTPError) Kind() Kind {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return KindAuthentication
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	case e.StatusCode >= 500:
		return KindServer
	default:
		return KindRequest
	}
}

func (e *HTTPError) Is(target error) bool { return target == sentinels[e.Kind()] }

// NetworkError is a request that never produced an HTTP response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error  { return e.Err }
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Timeout reports whether the request ran out of time or was aborted by its deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// PayloadError is a 2xx response whose body could not be trusted: it did not
// decode, reported success=false, or lacked a required field.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return "payload: " + e.Reason + ": " + e.Err.Error()
	}
	return "payload: " + e.Reason
}
func (e *PayloadError) Unwrap() error { return e.Err }
func (e *PayloadError) Is(target error) bool {
	return target == ErrServer
}

// RefreshError means the refresh token was rejected and the session is gone.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "refresh: " + e.Err.Error() }
func (e *RefreshError) Unwrap() error  { return e.Err }
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefresh
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// KindOf classifies err. A refresh failure wins over the 401 it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return KindRefresh
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Kind()
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return KindServer
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnknown
}

// TimeoutMessage is shown when a request exceeds its deadline.
const TimeoutMessage = "Request timed out. The server is taking too long to respond."

// UserMessage turns err into the short text a notification shows.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	hasHTTP := errors.As(err, &httpErr) && httpErr.Message != ""

	switch KindOf(err) {
	case KindValidation:
		var vErr *domain.ValidationError
		errors.As(err, &vErr)
		return vErr.Message
	case KindRefresh:
		return "Your session has expired. Please sign in again."
	case KindAuthentication:
		if hasHTTP {
			return httpErr.Message
		}
		return "You are not signed in."
	case KindNotFound:
		if hasHTTP {
			return httpErr.Message
		}
		return "Not found."
	case KindRequest:
		if hasHTTP {
			return httpErr.Message
		}
		return "The request was rejected."
	case KindServer:
		if hasHTTP {
			return "Server error: " + httpErr.Message
		}
		return "The server returned an unexpected response."
	case KindNetwork:
		var netErr *NetworkError
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return TimeoutMessage
		}
		return "Could not reach the server. Check your connection."
	}
	return err.Error()
}
