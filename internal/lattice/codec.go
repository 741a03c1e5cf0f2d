// ABOUTME: Fixed-width byte encodings for toy scheme vectors
// ABOUTME: Reduced values are big-endian uint32, secret coefficients big-endian int32

package lattice

import (
	"encoding/binary"
	"fmt"
)

func encodeReduced(v Vector) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.BigEndian.PutUint32(out[4*i:], uint32(x))
	}
	return out
}

func decodeReduced(b []byte, n int) (Vector, error) {
	if len(b) != 4*n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(b), 4*n)
	}
	v := make(Vector, n)
	for i := range v {
		v[i] = int64(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func encodeSigned(v Vector) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.BigEndian.PutUint32(out[4*i:], uint32(int32(x)))
	}
	return out
}

func decodeSigned(b []byte, n int) (Vector, error) {
	if len(b) != 4*n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(b), 4*n)
	}
	v := make(Vector, n)
	for i := range v {
		v[i] = int64(int32(binary.BigEndian.Uint32(b[4*i:])))
	}
	return v, nil
}
