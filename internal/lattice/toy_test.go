// ABOUTME: Tests for the toy lattice scheme
// ABOUTME: Covers the worked example, round trips, tampering, and parameter validation

package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exampleScheme returns the n=2, q=23 scheme from the worked example.
func exampleScheme(t *testing.T) *ToyScheme {
	t.Helper()
	s, err := NewToyScheme(ToyParams{
		Q:      23,
		Matrix: Matrix{{3, 5}, {7, 2}},
		Low:    -2,
		High:   2,
	})
	require.NoError(t, err)
	return s
}

func TestToyScheme_WorkedExample(t *testing.T) {
	scheme := exampleScheme(t)
	secret := Vector{1, -1}

	pk, err := scheme.PublicVector(secret)
	require.NoError(t, err)
	assert.Equal(t, Vector{21, 5}, pk)

	msg := []byte("ping")
	sigma, c, err := scheme.SignVector(msg, secret)
	require.NoError(t, err)
	assert.True(t, scheme.VerifyVector(msg, sigma, c, pk))

	// every single-component change must fail
	for i := range sigma {
		for delta := int64(1); delta < 23; delta++ {
			tampered := append(Vector(nil), sigma...)
			tampered[i] = (tampered[i] + delta) % 23
			assert.False(t, scheme.VerifyVector(msg, tampered, c, pk),
				"component %d shifted by %d should not verify", i, delta)
		}
	}
}

func TestToyScheme_WrongMessage(t *testing.T) {
	scheme := exampleScheme(t)
	secret := Vector{1, -1}
	pk, err := scheme.PublicVector(secret)
	require.NoError(t, err)

	sigma, c, err := scheme.SignVector([]byte("ping"), secret)
	require.NoError(t, err)

	// "pong" has a different additive digest mod 23
	assert.False(t, scheme.VerifyVector([]byte("pong"), sigma, c, pk))
}

func TestToyScheme_ChallengeScalarTamper(t *testing.T) {
	scheme := exampleScheme(t)
	secret := Vector{2, 0}
	pk, err := scheme.PublicVector(secret)
	require.NoError(t, err)

	msg := []byte("hello")
	sigma, c, err := scheme.SignVector(msg, secret)
	require.NoError(t, err)

	// pk = [6, 14]: shifting c by d gives c' = c - 20d, never c + d mod 23
	for delta := int64(1); delta < 23; delta++ {
		assert.False(t, scheme.VerifyVector(msg, sigma, (c+delta)%23, pk))
	}
}

func TestToyScheme_ByteRoundTrip(t *testing.T) {
	matrix, err := NewToyMatrix(8, 7681, nil)
	require.NoError(t, err)

	for _, digest := range []Digest{AdditiveDigest, SHA3Digest} {
		scheme, err := NewToyScheme(ToyParams{Q: 7681, Matrix: matrix, Digest: digest})
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			kp, err := scheme.GenerateKey()
			require.NoError(t, err)
			assert.Len(t, kp.PublicKey, scheme.PublicKeySize())

			derived, err := scheme.PublicFromSecret(kp.SecretKey)
			require.NoError(t, err)
			assert.Equal(t, kp.PublicKey, derived)

			msg := []byte{byte(i), 'm', 's', 'g'}
			sig, err := scheme.Sign(msg, kp.SecretKey)
			require.NoError(t, err)
			assert.True(t, scheme.Verify(msg, sig, kp.PublicKey))
		}
	}
}

func TestToyScheme_VerifyRejectsMalformed(t *testing.T) {
	scheme := exampleScheme(t)
	secret, err := scheme.EncodeSecretKey(Vector{1, -1})
	require.NoError(t, err)
	pk, err := scheme.PublicFromSecret(secret)
	require.NoError(t, err)

	msg := []byte("ping")
	sig, err := scheme.Sign(msg, secret)
	require.NoError(t, err)
	require.True(t, scheme.Verify(msg, sig, pk))

	assert.False(t, scheme.Verify(msg, nil, pk))
	assert.False(t, scheme.Verify(msg, sig[:len(sig)-1], pk))
	assert.False(t, scheme.Verify(msg, sig, pk[:4]))

	// component >= q is rejected before any arithmetic
	bad := append([]byte(nil), sig...)
	bad[0], bad[1], bad[2], bad[3] = 0, 0, 0, 23
	assert.False(t, scheme.Verify(msg, bad, pk))
}

func TestToyScheme_SignRejectsOutOfRangeSecret(t *testing.T) {
	scheme := exampleScheme(t)

	_, _, err := scheme.SignVector([]byte("x"), Vector{3, 0})
	assert.ErrorIs(t, err, ErrMalformedKey)

	_, err = scheme.Sign([]byte("x"), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestNewToyScheme_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params ToyParams
	}{
		{name: "modulus too small", params: ToyParams{Q: 1, Matrix: Matrix{{0}}}},
		{name: "empty matrix", params: ToyParams{Q: 23}},
		{name: "ragged matrix", params: ToyParams{Q: 23, Matrix: Matrix{{1, 2}, {3}}}},
		{name: "entry out of range", params: ToyParams{Q: 23, Matrix: Matrix{{23}}}},
		{name: "negative entry", params: ToyParams{Q: 23, Matrix: Matrix{{-1}}}},
		{name: "inverted range", params: ToyParams{Q: 23, Matrix: Matrix{{1}}, Low: 2, High: -2}},
		{name: "range exceeds modulus", params: ToyParams{Q: 5, Matrix: Matrix{{1}}, Low: -5, High: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewToyScheme(tt.params)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestNewToyScheme_DefaultRange(t *testing.T) {
	scheme, err := NewToyScheme(ToyParams{Q: 23, Matrix: Matrix{{3, 5}, {7, 2}}})
	require.NoError(t, err)

	low, high := scheme.CoefficientRange()
	assert.Equal(t, int64(DefaultToyLow), low)
	assert.Equal(t, int64(DefaultToyHigh), high)
	assert.Equal(t, uint32(23), scheme.Modulus())
	assert.Equal(t, 2, scheme.Dimension())
}

func TestToyScheme_MatrixIsCopied(t *testing.T) {
	input := Matrix{{3, 5}, {7, 2}}
	scheme, err := NewToyScheme(ToyParams{Q: 23, Matrix: input})
	require.NoError(t, err)

	input[0][0] = 9
	got := scheme.Matrix()
	assert.Equal(t, int64(3), got[0][0])

	got[0][0] = 9
	assert.Equal(t, int64(3), scheme.Matrix()[0][0])
}
