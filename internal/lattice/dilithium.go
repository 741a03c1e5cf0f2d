// ABOUTME: Production lattice signatures backed by cloudflare/circl Dilithium
// ABOUTME: dilithium2 is the default mode; dilithium3 trades larger keys for a higher security level

package lattice

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode2"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Dilithium implements Scheme with CRYSTALS-Dilithium. Dilithium hashes the
// message internally with SHAKE and uses rejection sampling, so no external
// digest is applied.
type Dilithium struct {
	mode string
	rand io.Reader
}

var _ Scheme = (*Dilithium)(nil)

// NewDilithium returns the Dilithium backend for mode ("dilithium2" or
// "dilithium3"). rand supplies key generation entropy.
func NewDilithium(mode string, rand io.Reader) (*Dilithium, error) {
	switch mode {
	case SchemeDilithium2, SchemeDilithium3:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, mode)
	}
	return &Dilithium{mode: mode, rand: rand}, nil
}

// Name implements Scheme.
func (d *Dilithium) Name() string { return d.mode }

// PublicKeySize implements Scheme.
func (d *Dilithium) PublicKeySize() int {
	if d.mode == SchemeDilithium2 {
		return mode2.PublicKeySize
	}
	return mode3.PublicKeySize
}

// SignatureSize returns the fixed signature length for the mode.
func (d *Dilithium) SignatureSize() int {
	if d.mode == SchemeDilithium2 {
		return mode2.SignatureSize
	}
	return mode3.SignatureSize
}

// SecretKeySize returns the encoded secret key length for the mode.
func (d *Dilithium) SecretKeySize() int {
	if d.mode == SchemeDilithium2 {
		return mode2.PrivateKeySize
	}
	return mode3.PrivateKeySize
}

// GenerateKey implements Scheme.
func (d *Dilithium) GenerateKey() (*KeyPair, error) {
	switch d.mode {
	case SchemeDilithium2:
		pk, sk, err := mode2.GenerateKey(d.rand)
		if err != nil {
			return nil, fmt.Errorf("generating %s key: %w", d.mode, err)
		}
		return &KeyPair{PublicKey: pk.Bytes(), SecretKey: sk.Bytes()}, nil
	default:
		pk, sk, err := mode3.GenerateKey(d.rand)
		if err != nil {
			return nil, fmt.Errorf("generating %s key: %w", d.mode, err)
		}
		return &KeyPair{PublicKey: pk.Bytes(), SecretKey: sk.Bytes()}, nil
	}
}

// Sign implements Scheme.
func (d *Dilithium) Sign(message, secretKey []byte) ([]byte, error) {
	if len(secretKey) != d.SecretKeySize() {
		return nil, fmt.Errorf("%w: %s secret key must be %d bytes, got %d", ErrMalformedKey, d.mode, d.SecretKeySize(), len(secretKey))
	}
	sig := make([]byte, d.SignatureSize())

	switch d.mode {
	case SchemeDilithium2:
		var sk mode2.PrivateKey
		if err := sk.UnmarshalBinary(secretKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		mode2.SignTo(&sk, message, sig)
	default:
		var sk mode3.PrivateKey
		if err := sk.UnmarshalBinary(secretKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		mode3.SignTo(&sk, message, sig)
	}
	return sig, nil
}

// Verify implements Scheme.
func (d *Dilithium) Verify(message, signature, publicKey []byte) bool {
	if len(signature) != d.SignatureSize() || len(publicKey) != d.PublicKeySize() {
		return false
	}

	switch d.mode {
	case SchemeDilithium2:
		var pk mode2.PublicKey
		if err := pk.UnmarshalBinary(publicKey); err != nil {
			return false
		}
		return mode2.Verify(&pk, message, signature)
	default:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(publicKey); err != nil {
			return false
		}
		return mode3.Verify(&pk, message, signature)
	}
}

// PublicFromSecret implements Scheme.
func (d *Dilithium) PublicFromSecret(secretKey []byte) ([]byte, error) {
	if len(secretKey) != d.SecretKeySize() {
		return nil, fmt.Errorf("%w: %s secret key must be %d bytes, got %d", ErrMalformedKey, d.mode, d.SecretKeySize(), len(secretKey))
	}

	switch d.mode {
	case SchemeDilithium2:
		var sk mode2.PrivateKey
		if err := sk.UnmarshalBinary(secretKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		pk, ok := sk.Public().(*mode2.PublicKey)
		if !ok {
			return nil, ErrMalformedKey
		}
		return pk.Bytes(), nil
	default:
		var sk mode3.PrivateKey
		if err := sk.UnmarshalBinary(secretKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		pk, ok := sk.Public().(*mode3.PublicKey)
		if !ok {
			return nil, ErrMalformedKey
		}
		return pk.Bytes(), nil
	}
}
