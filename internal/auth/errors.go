// ABOUTME: Error taxonomy for register, challenge, and login
// ABOUTME: Every error is a recoverable, caller-visible condition matched with errors.Is

package auth

import (
	"errors"

	"github.com/2389/sigil/internal/challenge"
)

var (
	// ErrInvalidInput is returned for missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPrincipalAlreadyExists is returned when registering a taken ID.
	ErrPrincipalAlreadyExists = errors.New("principal already exists")

	// ErrPrincipalNotFound is returned for operations on unknown principals.
	ErrPrincipalNotFound = challenge.ErrPrincipalNotFound

	// ErrNoOutstandingChallenge is returned by Login when no live challenge
	// exists, whatever the reason.
	ErrNoOutstandingChallenge = challenge.ErrNoOutstandingChallenge

	// ErrInvalidSignature is returned by Login when verification fails.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSessionRevoked is returned for tokens that were logged out.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrRateLimited is returned when a principal exceeds its request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrRevocationUnavailable is returned by Logout when the session could
	// not be recorded as revoked. The token stays valid until it expires.
	ErrRevocationUnavailable = errors.New("revocation unavailable")
)
