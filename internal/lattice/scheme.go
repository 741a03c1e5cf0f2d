// ABOUTME: Signature scheme interface and backend selection for lattice signatures
// ABOUTME: Callers use Scheme without knowing whether dilithium or the toy construction is behind it

package lattice

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Scheme names accepted by New.
const (
	SchemeDilithium2 = "dilithium2"
	SchemeDilithium3 = "dilithium3"
	SchemeToy        = "toy"
)

var (
	// ErrUnknownScheme is returned by New for an unsupported scheme name.
	ErrUnknownScheme = errors.New("unknown signature scheme")

	// ErrInvalidParams is returned when scheme parameters are inconsistent.
	ErrInvalidParams = errors.New("invalid scheme parameters")

	// ErrMalformedKey is returned when key bytes cannot be decoded for a scheme.
	ErrMalformedKey = errors.New("malformed key")
)

// KeyPair holds the raw key material produced by GenerateKey.
// SecretKey belongs to the signing party; servers keep only PublicKey.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
}

// Scheme is a digital signature primitive.
type Scheme interface {
	// Name returns the scheme identifier (e.g. "dilithium2").
	Name() string

	// GenerateKey produces a fresh, independent key pair.
	GenerateKey() (*KeyPair, error)

	// Sign signs message with secretKey.
	Sign(message, secretKey []byte) ([]byte, error)

	// Verify reports whether signature is valid for message under publicKey.
	// Malformed input yields false.
	Verify(message, signature, publicKey []byte) bool

	// PublicFromSecret derives the public key that belongs to secretKey.
	PublicFromSecret(secretKey []byte) ([]byte, error)

	// PublicKeySize returns the encoded public key length in bytes.
	PublicKeySize() int
}

// Params selects and configures a Scheme.
type Params struct {
	Name string
	Toy  ToyParams
	Rand io.Reader // defaults to crypto/rand.Reader
}

// New returns the Scheme named by p.Name.
func New(p Params) (Scheme, error) {
	r := p.Rand
	if r == nil {
		r = rand.Reader
	}

	switch p.Name {
	case SchemeDilithium2, SchemeDilithium3:
		return NewDilithium(p.Name, r)
	case SchemeToy:
		toy := p.Toy
		if toy.Rand == nil {
			toy.Rand = r
		}
		return NewToyScheme(toy)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, p.Name)
	}
}
