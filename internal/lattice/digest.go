// ABOUTME: Pluggable message digests mapping bytes to an integer mod q
// ABOUTME: The additive digest is the teaching variant; sha3 is the cryptographic one

package lattice

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Digest maps a message to an integer in [0, q).
type Digest interface {
	Digest(message []byte, q uint32) uint32
}

// DigestFunc adapts a function to the Digest interface.
type DigestFunc func(message []byte, q uint32) uint32

// Digest calls f(message, q).
func (f DigestFunc) Digest(message []byte, q uint32) uint32 {
	return f(message, q)
}

// Digest names accepted by DigestByName.
const (
	DigestAdditive = "additive"
	DigestSHA3     = "sha3"
)

// AdditiveDigest sums the message bytes mod q. It has no collision resistance
// and exists only for the toy scheme.
var AdditiveDigest Digest = DigestFunc(func(message []byte, q uint32) uint32 {
	var sum uint64
	for _, b := range message {
		sum = (sum + uint64(b)) % uint64(q)
	}
	return uint32(sum)
})

// SHA3Digest reduces the first 8 bytes of SHA3-256(message) mod q.
var SHA3Digest Digest = DigestFunc(func(message []byte, q uint32) uint32 {
	sum := sha3.Sum256(message)
	return uint32(binary.BigEndian.Uint64(sum[:8]) % uint64(q))
})

// DigestByName returns the digest registered under name. An empty name
// selects the additive digest.
func DigestByName(name string) (Digest, error) {
	switch name {
	case "", DigestAdditive:
		return AdditiveDigest, nil
	case DigestSHA3:
		return SHA3Digest, nil
	default:
		return nil, fmt.Errorf("%w: unknown digest %q", ErrInvalidParams, name)
	}
}
