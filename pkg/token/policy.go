package token

import "time"

// DefaultRefreshBuffer is how long before expiry a token is proactively
// refreshed.
const DefaultRefreshBuffer = 5 * time.Minute

// Policy evaluates tokens against a clock. The zero value uses
// DefaultRefreshBuffer and time.Now.
type Policy struct {
	Buffer time.Duration
	Now    func() time.Time
}

func DefaultPolicy() Policy {
	return Policy{Buffer: DefaultRefreshBuffer, Now: time.Now}
}

func (p Policy) now() int64 {
	if p.Now == nil {
		return time.Now().Unix()
	}
	return p.Now().Unix()
}

func (p Policy) buffer() int64 {
	if p.Buffer <= 0 {
		return int64(DefaultRefreshBuffer / time.Second)
	}
	return int64(p.Buffer / time.Second)
}

// IsExpired is true when token cannot be decoded or now >= exp.
func (p Policy) IsExpired(token string) bool {
	claims, ok := Decode(token)
	if !ok {
		return true
	}
	return p.now() >= claims.ExpiresAt
}

// NeedsRefresh is true when token cannot be decoded or now >= exp - buffer.
// It always trips before IsExpired does.
func (p Policy) NeedsRefresh(token string) bool {
	claims, ok := Decode(token)
	if !ok {
		return true
	}
	return p.now() >= claims.ExpiresAt-p.buffer()
}

// Usable reports whether token is well formed and not expired.
func (p Policy) Usable(token string) bool {
	return IsWellFormed(token) && !p.IsExpired(token)
}

// Remaining returns the time left before token expires, or zero.
func (p Policy) Remaining(token string) time.Duration {
	claims, ok := Decode(token)
	if !ok {
		return 0
	}
	left := claims.ExpiresAt - p.now()
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Second
}
