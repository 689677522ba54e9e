package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoResult is returned when the node answers with a null result, e.g. for a
// height beyond the chain head.
var ErrNoResult = errors.New("rpc: null result")

// StatusError is a non-2xx HTTP response. Body is kept for diagnosis.
type StatusError struct {
	Method string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Method, e.Code, e.Body)
}

// RateLimited reports whether the node asked us to slow down.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// NetworkError wraps a transport-level failure (reset, timeout, refused).
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RPCError is a JSON-RPC error envelope returned with a 2xx status.
type RPCError struct {
	Method  string
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// ConnectivityError means the node could not be reached at startup. It is never retried.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries an HTTP 429.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.RateLimited()
}

// IsRetryable is true for rate limiting and transport-level failures only.
// Every other HTTP status, JSON-RPC errors and connectivity errors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return false
	}
	if IsRateLimited(err) {
		return true
	}
	var ne *NetworkError
	return errors.As(err, &ne)
}
