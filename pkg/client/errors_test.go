package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := map[int]Kind{
		http.StatusBadRequest:          KindValidation,
		http.StatusUnauthorized:        KindAuth,
		http.StatusForbidden:           KindValidation,
		http.StatusNotFound:            KindValidation,
		http.StatusConflict:            KindValidation,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusInternalServerError: KindServer,
		http.StatusGatewayTimeout:      KindServer,
		http.StatusOK:                  KindUnknown,
	}

	for status, want := range tests {
		assert.Equal(t, want, kindForStatus(status), "status %d", status)
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests}
	wrapped := fmt.Errorf("list products: %w", inner)

	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsAuth(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindServer, Status: 500, Message: "Unexpected server error"}
	assert.Equal(t, "server error (500): Unexpected server error", err.Error())

	err = &Error{Kind: KindNetwork, Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "network error: dial tcp: refused", err.Error())
}

func TestTransportErrorClassification(t *testing.T) {
	assert.Equal(t, KindTimeout, transportError(context.Background(), context.DeadlineExceeded).Kind)
	assert.Equal(t, KindNetwork, transportError(context.Background(), errors.New("connection reset")).Kind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := transportError(ctx, context.Canceled)
	assert.Equal(t, KindUnknown, cancelled.Kind)
	assert.ErrorIs(t, cancelled, context.Canceled)
	assert.False(t, IsRetryable(cancelled))
}

func TestResponseErrorFallsBackToStatus(t *testing.T) {
	err := responseError(&Response{Status: http.StatusBadGateway, Body: []byte("<html>bad gateway</html>")})
	assert.Equal(t, KindServer, err.Kind)
	assert.Equal(t, "HTTP error! status: 502", err.Message)

	err = responseError(&Response{Status: http.StatusConflict, Body: []byte(`{"success":false,"error":{"code":"ALREADY_EXISTS","message":"Email already registered"}}`)})
	assert.Equal(t, "ALREADY_EXISTS", err.Code)
	assert.Equal(t, "Email already registered", err.Message)
}
