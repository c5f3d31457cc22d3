// Package client is the authenticated session layer for the invoice API.
//
// A Client owns one Session. Every outbound call goes through Client.Do,
// which refreshes the access token ahead of expiry, attaches it as a bearer
// credential and classifies failures into a closed set of Kinds. Concurrent
// calls that all need a refresh share a single exchange with the server.
//
// Basic use:
//
//	store, _ := tokenstore.NewFileStore(path)
//	c, err := client.New(client.Config{BaseURL: "http://localhost:5000/api", Store: store})
//	if err != nil { ... }
//	if _, err := c.Login(ctx, email, password); err != nil { ... }
//	products, err := c.ListProducts(ctx)
//
// Terminal authentication failures surface once as a *Error of KindAuth;
// callers map that to a login prompt.
package client
