package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"go-invoice/pkg/token"
)

// TokenPair is what a refresh exchange returns. RefreshToken may be empty
// when the server does not rotate.
type TokenPair struct {
	Token        string
	RefreshToken string
}

// ExchangeFunc redeems a refresh token with the server.
type ExchangeFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// Refresher collapses concurrent refresh requests into one exchange. A
// refresh token is never redeemed twice at the same time.
type Refresher struct {
	session  *Session
	exchange ExchangeFunc
	policy   token.Policy
	timeout  time.Duration
	logger   *slog.Logger

	group     singleflight.Group
	exchanges atomic.Int64
}

func NewRefresher(session *Session, exchange ExchangeFunc, policy token.Policy, timeout time.Duration, logger *slog.Logger) *Refresher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		session:  session,
		exchange: exchange,
		policy:   policy,
		timeout:  timeout,
		logger:   logger,
	}
}

// Refresh returns a fresh access token, joining an exchange already in
// flight for the same session generation when there is one. Cancelling ctx
// stops this caller from waiting but leaves the shared exchange running for
// the others.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	key := strconv.FormatUint(r.session.currentGeneration(), 10)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.run(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Exchanges reports how many network exchanges have been started.
func (r *Refresher) Exchanges() int64 {
	return r.exchanges.Load()
}

func (r *Refresher) run(parent context.Context) (newToken string, err error) {
	var (
		generation uint64
		begun      bool
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrRefreshFailed, recovered)
		}
		if err != nil && begun {
			r.session.abortRefresh(generation)
		}
	}()

	// A caller that read the token before the previous exchange finished
	// arrives here late; the pair it needs is already stored.
	if current := r.session.accessToken(); current != "" && !r.policy.NeedsRefresh(current) {
		return current, nil
	}

	refresh := r.session.refreshToken()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	generation = r.session.beginRefresh()
	begun = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
	defer cancel()

	r.exchanges.Add(1)
	started := time.Now()
	pair, err := r.exchange(ctx, refresh)
	if err != nil {
		r.logger.Warn("refresh exchange failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if pair.Token == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrRefreshFailed)
	}

	if err := r.session.completeRefresh(generation, pair.Token, pair.RefreshToken); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	r.logger.Debug("access token refreshed", "duration_ms", time.Since(started).Milliseconds())
	return pair.Token, nil
}
