// Package auth implements challenge-response login for sigil.
//
// # Flow
//
// A principal is registered once, either server-side (Register generates a
// key pair and hands the secret back) or client-side (Enroll takes only a
// public key). Only the public key is stored.
//
// To log in the principal asks for a challenge, signs the returned nonce
// with its secret key, and sends the signature to Login:
//
//	c, _ := svc.Challenge(ctx, "alice")
//	sig, _ := scheme.Sign(c.Nonce, secretKey)
//	session, err := svc.Login(ctx, "alice", sig)
//
// Login consumes the challenge before verifying, so a nonce is good for at
// most one attempt. Issuing a new challenge replaces any earlier one.
//
// # Errors
//
// Callers match failures with errors.Is against ErrInvalidInput,
// ErrPrincipalAlreadyExists, ErrPrincipalNotFound, ErrNoOutstandingChallenge,
// ErrInvalidSignature, and ErrRateLimited.
//
// # Session Tokens
//
// When a JWTVerifier is configured, a successful Login carries an HS256 JWT
// whose "sub" is the principal ID and whose "jti" is the consumed challenge
// ID. SessionMiddleware validates these on HTTP requests and exposes the
// result through FromContext. Logout revokes a token before its expiry.
//
// There is no server-side Sign. Signing happens in
// internal/client or in the sigil-admin CLI.
package auth
