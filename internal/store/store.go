// ABOUTME: PrincipalStore interface and data types for enrolled identities
// ABOUTME: Principals carry only public key material; secret keys never reach the store

package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/mr-tron/base58"
)

// ErrNotFound is returned when a requested principal does not exist
var ErrNotFound = errors.New("not found")

// ErrPrincipalExists is returned when creating a principal whose ID is taken
var ErrPrincipalExists = errors.New("principal already exists")

// FingerprintPrefix marks principal fingerprints.
const FingerprintPrefix = "sig1"

// Principal is an identity enrolled with a public key.
type Principal struct {
	ID          string
	Scheme      string // signature scheme name, e.g. "dilithium2"
	PublicKey   []byte
	Fingerprint string // FingerprintPrefix + base58(sha256(PublicKey))
	CreatedAt   time.Time
}

// PrincipalStore defines persistence for enrolled principals.
type PrincipalStore interface {
	// CreatePrincipal atomically inserts p, returning ErrPrincipalExists if the ID is taken.
	CreatePrincipal(ctx context.Context, p *Principal) error

	// GetPrincipal returns the principal or ErrNotFound.
	GetPrincipal(ctx context.Context, id string) (*Principal, error)

	// PrincipalExists reports whether id is enrolled.
	PrincipalExists(ctx context.Context, id string) (bool, error)

	// ListPrincipals returns all principals ordered by ID.
	ListPrincipals(ctx context.Context) ([]*Principal, error)

	// Close releases any resources held by the store
	Close() error
}

// Fingerprint returns the display fingerprint for a public key.
func Fingerprint(publicKey []byte) string {
	h := sha256.Sum256(publicKey)
	return FingerprintPrefix + base58.Encode(h[:])
}

func clonePrincipal(p *Principal) *Principal {
	c := *p
	c.PublicKey = append([]byte(nil), p.PublicKey...)
	return &c
}
