// Package token inspects session tokens on the client side.
//
// Nothing here verifies signatures. Decoded claims are used only to decide
// whether a token is worth sending and when to refresh it; trust decisions
// belong to the server.
package token
