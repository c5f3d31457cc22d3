// Package tokenstore persists the client's access and refresh tokens.
//
// Every backend keeps exactly two keys. Clear removes both in one step so a
// reader never sees a fresh access token next to a cleared refresh token or
// the reverse.
package tokenstore

const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
)

// Store is the only path through which session tokens are mutated.
// Reads of a missing or unreadable key return "".
type Store interface {
	Get() string
	Set(token string) error
	GetRefresh() string
	SetRefresh(token string) error
	// SetPair writes both keys together. An empty refresh leaves the stored
	// refresh token untouched.
	SetPair(token string, refresh string) error
	// Replace writes both keys exactly as given in one step; an empty refresh
	// removes the stored one.
	Replace(token string, refresh string) error
	Clear() error
}
