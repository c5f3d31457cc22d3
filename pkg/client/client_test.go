package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-invoice/pkg/tokenstore"
)

func TestLoginThenProtectedCallAttachesBearer(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemoryStore()
	c := newTestClient(t, api, store)

	user, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "u-1", user.ID)

	snap := c.Session().Snapshot()
	require.Equal(t, StateAuthenticated, snap.State)
	require.True(t, snap.IsAuthenticated)
	require.NotEmpty(t, store.Get())
	require.Equal(t, "r-login", store.GetRefresh())

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)

	require.Equal(t, []string{store.Get()}, api.tokensSeen())
	require.Zero(t, api.refreshCalls.Load())
}

func TestLoginWithBadCredentials(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemoryStore()
	c := newTestClient(t, api, store)

	_, err := c.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	require.Equal(t, KindAuth, KindOf(err))

	snap := c.Session().Snapshot()
	require.Equal(t, StateLoggedOut, snap.State)
	require.Error(t, snap.Err)
	require.Empty(t, store.Get())
}

func TestExpiredTokenRefreshesBeforeRequest(t *testing.T) {
	api := newFakeAPI(t)
	api.addRefresh("r-0")

	store := tokenstore.NewMemoryStore()
	stale := expiredToken(t)
	require.NoError(t, store.SetPair(stale, "r-0"))

	c := newTestClient(t, api, store)
	require.Equal(t, StateAuthenticated, c.Session().State())

	_, err := c.ListProducts(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	seen := api.tokensSeen()
	require.Len(t, seen, 1)
	require.NotEqual(t, stale, seen[0])
	require.Equal(t, store.Get(), seen[0])
	require.Equal(t, "r-1", store.GetRefresh())
	require.Equal(t, StateAuthenticated, c.Session().State())
}

func TestExpiredTokenRefreshFailureSendsNothing(t *testing.T) {
	api := newFakeAPI(t)
	api.rejectRefresh = true

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
	c := newTestClient(t, api, store)

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	require.True(t, IsAuth(err))
	require.ErrorIs(t, err, ErrSessionExpired)
	require.ErrorIs(t, err, ErrRefreshFailed)

	require.Zero(t, api.productCalls.Load())
	require.Empty(t, store.Get())
	require.Empty(t, store.GetRefresh())
	require.Equal(t, StateLoggedOut, c.Session().State())
}

func TestMissingRefreshTokenLogsOut(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
	c := newTestClient(t, api, store)

	require.NoError(t, store.SetRefresh(""))

	_, err := c.ListProducts(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.True(t, IsAuth(err))

	require.Zero(t, api.refreshCalls.Load())
	require.Empty(t, store.Get())
	require.Empty(t, store.GetRefresh())
	require.Equal(t, StateLoggedOut, c.Session().State())
}

func TestServerRejectionClearsSessionWithoutRetry(t *testing.T) {
	api := newFakeAPI(t)
	api.addRefresh("r-0")

	store := tokenstore.NewMemoryStore()
	now := time.Now()
	forged := signAccess(t, []byte("some-other-secret"), "u-1", now, now.Add(time.Hour))
	require.NoError(t, store.SetPair(forged, "r-0"))
	c := newTestClient(t, api, store)

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	require.True(t, IsAuth(err))
	require.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "INVALID_CREDENTIAL", apiErr.Code)

	require.EqualValues(t, 1, api.productCalls.Load())
	require.Zero(t, api.refreshCalls.Load())
	require.Empty(t, store.Get())
	require.Empty(t, store.GetRefresh())
	require.Equal(t, StateLoggedOut, c.Session().State())
}

func TestConcurrentCallsShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.addRefresh("r-0")
	gate := make(chan struct{})
	api.refreshGate = gate

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
	c := newTestClient(t, api, store)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListProducts(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 1, c.Refresher().Exchanges())

	seen := api.tokensSeen()
	require.Len(t, seen, callers)
	for _, tok := range seen {
		require.Equal(t, seen[0], tok)
	}
}

func TestTimeoutIsDistinctFromServerError(t *testing.T) {
	api := newFakeAPI(t)
	api.productDelay = 500 * time.Millisecond

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(freshToken(t), "r-0"))

	c, err := New(Config{
		BaseURL: api.baseURL(),
		Store:   store,
		Timeout: 50 * time.Millisecond,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	_, err = c.ListProducts(context.Background())
	require.Error(t, err)
	require.Equal(t, KindTimeout, KindOf(err))
	require.True(t, IsRetryable(err))

	require.Equal(t, StateAuthenticated, c.Session().State())
	require.NotEmpty(t, store.Get())
}

func TestNonAuthErrorsLeaveSessionAlone(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusInternalServerError, KindServer},
		{http.StatusServiceUnavailable, KindServer},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			api := newFakeAPI(t)
			api.productStatus = tc.status

			store := tokenstore.NewMemoryStore()
			access := freshToken(t)
			require.NoError(t, store.SetPair(access, "r-0"))
			c := newTestClient(t, api, store)

			_, err := c.ListProducts(context.Background())
			require.Error(t, err)
			require.Equal(t, tc.kind, KindOf(err))

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.status, apiErr.Status)
			require.NotEmpty(t, apiErr.Message)

			require.Equal(t, StateAuthenticated, c.Session().State())
			require.Equal(t, access, store.Get())
			require.Equal(t, "r-0", store.GetRefresh())
		})
	}
}

func TestNetworkFailureIsClassified(t *testing.T) {
	api := newFakeAPI(t)
	url := api.baseURL()
	api.server.Close()

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(freshToken(t), "r-0"))

	c, err := New(Config{BaseURL: url, Store: store, Logger: discardLogger()})
	require.NoError(t, err)

	_, err = c.ListProducts(context.Background())
	require.Equal(t, KindNetwork, KindOf(err))
	require.True(t, IsRetryable(err))
	require.Equal(t, StateAuthenticated, c.Session().State())
}

func TestCancelledCallerDoesNotEndSession(t *testing.T) {
	api := newFakeAPI(t)
	api.addRefresh("r-0")
	gate := make(chan struct{})
	api.refreshGate = gate

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
	c := newTestClient(t, api, store)

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.ListProducts(ctx)
		firstDone <- err
	}()

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := c.ListProducts(context.Background())
		secondDone <- err
	}()

	cancel()
	err := <-firstDone
	require.Error(t, err)
	require.False(t, IsAuth(err))
	require.True(t, errors.Is(err, context.Canceled))

	close(gate)
	require.NoError(t, <-secondDone)
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Equal(t, StateAuthenticated, c.Session().State())
	require.Equal(t, "r-1", store.GetRefresh())
}

func TestStaleRefreshOutcomeKeepsNewerLogin(t *testing.T) {
	for _, revoked := range []bool{false, true} {
		name := "exchange succeeds late"
		if revoked {
			name = "exchange rejected late"
		}
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.addRefresh("r-0")
			gate := make(chan struct{})
			api.refreshGate = gate

			store := tokenstore.NewMemoryStore()
			require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
			c := newTestClient(t, api, store)

			staleDone := make(chan error, 1)
			go func() {
				_, err := c.ListProducts(context.Background())
				staleDone <- err
			}()
			require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

			c.Session().Logout(nil)
			_, err := c.Login(context.Background(), "ada@example.com", "secret")
			require.NoError(t, err)
			loginToken := store.Get()
			require.NotEmpty(t, loginToken)

			if revoked {
				api.mu.Lock()
				api.rejectRefresh = true
				api.mu.Unlock()
			}
			close(gate)
			require.Error(t, <-staleDone)

			snap := c.Session().Snapshot()
			assert.Equal(t, StateAuthenticated, snap.State)
			assert.Equal(t, loginToken, store.Get())
			assert.Equal(t, "r-login", store.GetRefresh())
			assert.NoError(t, snap.Err)
		})
	}
}

func TestLoginDuringRefreshIsClassified(t *testing.T) {
	api := newFakeAPI(t)
	api.addRefresh("r-0")
	gate := make(chan struct{})
	api.refreshGate = gate

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetPair(expiredToken(t), "r-0"))
	c := newTestClient(t, api, store)

	done := make(chan error, 1)
	go func() {
		_, err := c.ListProducts(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return c.Session().State() == StateRefreshing }, time.Second, 5*time.Millisecond)

	_, err := c.Login(context.Background(), "ada@example.com", "secret")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, IsRetryable(err))

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateAuthenticated, c.Session().State())
}

func TestLogoutRevokesAndClears(t *testing.T) {
	api := newFakeAPI(t)
	store := tokenstore.NewMemoryStore()
	c := newTestClient(t, api, store)

	_, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, store.Get())
	assert.Empty(t, store.GetRefresh())
	assert.Equal(t, StateLoggedOut, c.Session().State())

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.False(t, api.validRefresh["r-login"])
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Store: tokenstore.NewMemoryStore()})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
}
