// ABOUTME: Exhaustive secret recovery against the toy scheme
// ABOUTME: Demonstrates why the toy construction must never guard real access

package lattice

import (
	"context"
	"errors"
	"math"
)

// ErrNotRecovered is returned when the search exhausts the keyspace.
var ErrNotRecovered = errors.New("no secret vector matches the public key")

// Candidate is reported to a ProgressFunc for every vector tried.
type Candidate struct {
	Vector Vector
	Tried  uint64
	Match  bool
}

// ProgressFunc observes the search. It is called synchronously.
type ProgressFunc func(Candidate)

// Recoverer is implemented by schemes whose secret can be found by search.
// Production backends do not implement it.
type Recoverer interface {
	KeyspaceSize() (uint64, bool)
	RecoverSecret(ctx context.Context, publicKey Vector, progress ProgressFunc) (Vector, error)
}

// KeyspaceSize returns (High−Low+1)^n. ok is false when it overflows uint64.
func (t *ToyScheme) KeyspaceSize() (size uint64, ok bool) {
	span := uint64(t.high - t.low + 1)
	size = 1
	for range t.a {
		if size > math.MaxUint64/span {
			return 0, false
		}
		size *= span
	}
	return size, true
}

// RecoverSecret walks every secret vector in [Low, High]^n in lexicographic
// order and returns the first s' with A·s' mod q == publicKey. s' need not
// equal the original secret but signs equally well.
func (t *ToyScheme) RecoverSecret(ctx context.Context, publicKey Vector, progress ProgressFunc) (Vector, error) {
	if !t.reduced(publicKey) {
		return nil, ErrMalformedKey
	}

	n := len(t.a)
	cand := make(Vector, n)
	for i := range cand {
		cand[i] = t.low
	}

	var tried uint64
	for {
		if tried%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tried++

		match := vectorsEqual(t.mulVec(cand), publicKey)
		if progress != nil {
			progress(Candidate{Vector: append(Vector(nil), cand...), Tried: tried, Match: match})
		}
		if match {
			return append(Vector(nil), cand...), nil
		}

		// odometer increment, last coordinate fastest
		i := n - 1
		for ; i >= 0; i-- {
			if cand[i] < t.high {
				cand[i]++
				break
			}
			cand[i] = t.low
		}
		if i < 0 {
			return nil, ErrNotRecovered
		}
	}
}

func vectorsEqual(a, b Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
