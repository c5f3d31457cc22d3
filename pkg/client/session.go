package client

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"go-invoice/pkg/token"
	"go-invoice/pkg/tokenstore"
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateAnonymous:      {StateAuthenticating, StateAuthenticated, StateLoggedOut},
	StateAuthenticating: {StateAuthenticated, StateLoggedOut},
	StateAuthenticated:  {StateAuthenticating, StateRefreshing, StateLoggedOut},
	StateRefreshing:     {StateAuthenticated, StateLoggedOut},
	StateLoggedOut:      {StateAuthenticating, StateAuthenticated, StateLoggedOut},
}

func canTransition(from State, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Snapshot is a copy of the session as observers see it.
type Snapshot struct {
	State           State
	Token           string
	RefreshToken    string
	IsAuthenticated bool
	User            *User
	Err             error
}

// Session is the single owner of client authentication state. The token
// store behind it is only written from here.
type Session struct {
	store  tokenstore.Store
	policy token.Policy
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	user        *User
	lastErr     error
	generation  uint64
	subscribers map[string]chan Snapshot
}

func NewSession(store tokenstore.Store, policy token.Policy, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:       store,
		policy:      policy,
		logger:      logger,
		state:       StateAnonymous,
		subscribers: map[string]chan Snapshot{},
	}
}

// Restore loads persisted tokens at process start. A usable access token, or
// an expired but decodable one backed by a refresh token, yields
// Authenticated; the first call through the gateway refreshes a stale one.
// Anything else is wiped.
func (s *Session) Restore() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	access := s.store.Get()
	refresh := s.store.GetRefresh()

	switch {
	case s.policy.Usable(access):
	case refresh != "" && decodes(access):
		s.logger.Debug("restored session holds a stale access token; will refresh on first call")
	default:
		if access != "" || refresh != "" {
			s.logger.Info("discarding unusable persisted session")
		}
		s.clearStoreLocked()
		s.state = StateAnonymous
		return s.snapshotLocked()
	}

	s.user = userFromToken(access)
	s.lastErr = nil
	_ = s.transitionLocked(StateAuthenticated)
	return s.snapshotLocked()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe delivers a Snapshot after every transition. Slow subscribers
// miss updates rather than block the session.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Snapshot, 16)
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, exists := s.subscribers[id]; exists {
			close(ch)
			delete(s.subscribers, id)
		}
	}

	return ch, unsubscribe
}

// Logout clears persisted tokens and moves to LoggedOut. cause is kept as
// the session error; nil means an explicit logout.
func (s *Session) Logout(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(cause)
}

func (s *Session) beginLogin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = nil
	return s.transitionLocked(StateAuthenticating)
}

func (s *Session) completeLogin(user User, access string, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticating {
		return fmt.Errorf("%w: login completed in state %s", ErrInvalidTransition, s.state)
	}

	// A new login replaces the whole pair; never keep a previous refresh token.
	if err := s.store.Replace(access, refresh); err != nil {
		s.lastErr = err
		_ = s.transitionLocked(StateLoggedOut)
		return fmt.Errorf("persist session: %w", err)
	}

	s.user = &user
	s.lastErr = nil
	s.generation++
	return s.transitionLocked(StateAuthenticated)
}

func (s *Session) failLogin(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(cause)
}

// beginRefresh marks the session as refreshing and returns the generation
// the refresh belongs to.
func (s *Session) beginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAuthenticated {
		_ = s.transitionLocked(StateRefreshing)
	}
	return s.generation
}

// completeRefresh persists a refreshed pair unless the session was logged
// out or replaced while the exchange was running.
func (s *Session) completeRefresh(generation uint64, access string, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.state == StateLoggedOut {
		return fmt.Errorf("%w: session ended during refresh", ErrNotAuthenticated)
	}

	if err := s.store.SetPair(access, refresh); err != nil {
		return fmt.Errorf("persist refreshed tokens: %w", err)
	}

	if s.user == nil {
		s.user = userFromToken(access)
	}
	if s.state == StateAuthenticated {
		return nil
	}
	return s.transitionLocked(StateAuthenticated)
}

// abortRefresh returns a failed refresh to Authenticated. Whether the
// session then ends is the caller's decision.
func (s *Session) abortRefresh(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.state != StateRefreshing {
		return
	}
	_ = s.transitionLocked(StateAuthenticated)
}

func (s *Session) accessToken() string {
	return s.store.Get()
}

// current returns the access token together with the generation it belongs
// to. Failures observed with that token may only end that generation.
func (s *Session) current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(), s.generation
}

func (s *Session) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// logoutIf ends the session only when it is still the given generation. It
// reports whether it did.
func (s *Session) logoutIf(generation uint64, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}
	s.endLocked(cause)
	return true
}

func (s *Session) endLocked(cause error) {
	s.clearStoreLocked()
	s.user = nil
	s.lastErr = cause
	s.generation++
	if s.state != StateLoggedOut {
		_ = s.transitionLocked(StateLoggedOut)
	}
}

func (s *Session) refreshToken() string {
	return s.store.GetRefresh()
}

func (s *Session) transitionLocked(to State) error {
	from := s.state
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	s.state = to
	s.logger.Debug("session transition", "from", from.String(), "to", to.String())
	s.notifyLocked()
	return nil
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		Token:           s.store.Get(),
		RefreshToken:    s.store.GetRefresh(),
		IsAuthenticated: s.state == StateAuthenticated || s.state == StateRefreshing,
		Err:             s.lastErr,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Session) clearStoreLocked() {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("failed to clear token store", "error", err)
	}
}

func decodes(access string) bool {
	_, ok := token.Decode(access)
	return ok
}

func userFromToken(access string) *User {
	claims, ok := token.Decode(access)
	if !ok {
		return nil
	}
	return &User{ID: claims.SubjectID, Email: claims.Email}
}
