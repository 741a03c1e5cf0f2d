// ABOUTME: Tests for message digests
// ABOUTME: Checks range, known additive values, and name lookup

package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdditiveDigest(t *testing.T) {
	// 'p'+'i'+'n'+'g' = 430 = 18*23 + 16
	assert.Equal(t, uint32(16), AdditiveDigest.Digest([]byte("ping"), 23))
	assert.Equal(t, uint32(0), AdditiveDigest.Digest(nil, 23))

	// permutations collide, which is why it is toy-only
	assert.Equal(t,
		AdditiveDigest.Digest([]byte("ab"), 97),
		AdditiveDigest.Digest([]byte("ba"), 97))
}

func TestSHA3Digest(t *testing.T) {
	for _, q := range []uint32{2, 23, 7681, MaxToyModulus} {
		d := SHA3Digest.Digest([]byte("ping"), q)
		assert.Less(t, d, q)
		assert.Equal(t, d, SHA3Digest.Digest([]byte("ping"), q))
	}
	assert.NotEqual(t,
		SHA3Digest.Digest([]byte("ab"), MaxToyModulus),
		SHA3Digest.Digest([]byte("ba"), MaxToyModulus))
}

func TestDigestByName(t *testing.T) {
	d, err := DigestByName("")
	require.NoError(t, err)
	assert.Equal(t, uint32(16), d.Digest([]byte("ping"), 23))

	_, err = DigestByName(DigestSHA3)
	require.NoError(t, err)

	_, err = DigestByName("md5")
	assert.ErrorIs(t, err, ErrInvalidParams)
}
