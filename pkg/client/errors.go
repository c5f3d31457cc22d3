package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed call. It is assigned once, where the failure is
// observed, and never re-derived by callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindAuth
	KindValidation
	KindRateLimited
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

var (
	ErrSessionExpired    = errors.New("authentication expired, please log in again")
	ErrUnauthorized      = errors.New("authentication required, please log in again")
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrRefreshFailed     = errors.New("token refresh failed")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err ends the session and calls for a fresh login.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// IsRetryable reports whether a caller's retry policy may repeat the call.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

func transportError(parent context.Context, err error) *Error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return &Error{Kind: KindUnknown, Message: "request cancelled", Err: parent.Err()}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}

	return &Error{Kind: KindNetwork, Message: "network error", Err: err}
}
