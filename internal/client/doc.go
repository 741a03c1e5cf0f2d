// Package client is the HTTP client for sigil-gateway together with a local
// keyring.
//
// A Key holds a principal's key pair plus the scheme parameters needed to
// sign, so logging in needs nothing from the gateway but a challenge:
//
//	c := client.New("http://localhost:8080", nil)
//	key, _ := keyring.Load("alice")
//	session, err := c.Authenticate(ctx, key)
//
// Gateway errors come back as *APIError and unwrap to the auth package's
// sentinel errors.
package client
