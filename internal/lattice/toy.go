// ABOUTME: Toy linear lattice signature over Z_q used for teaching and tests
// ABOUTME: NOT SECURE: the small secret keyspace is recoverable by exhaustive search

package lattice

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
)

// MaxToyModulus bounds q so every reduced value fits a uint32 and every
// single product of two reduced values fits an int64.
const MaxToyModulus = 1<<31 - 1

// Default secret coefficient range for the toy scheme.
const (
	DefaultToyLow  = -2
	DefaultToyHigh = 2
)

// Vector is a vector of integers. Secret vectors hold small signed
// coefficients; public keys and responses hold values in [0, q).
type Vector []int64

// Matrix is a square matrix with entries in [0, q), stored row-major.
type Matrix [][]int64

// ToyParams configures a ToyScheme. Low and High both zero select the
// default coefficient range [-2, 2].
type ToyParams struct {
	Q      uint32
	Matrix Matrix
	Low    int64
	High   int64
	Digest Digest
	Rand   io.Reader
}

// ToyScheme is the pedagogical lattice construction:
//
//	keygen:  s small, pk = A·s mod q
//	sign:    r small, u = A·r, c = (Σu + H(m)) mod q, σ = r + c·s mod q
//	verify:  u' = A·σ − c·pk, accept iff (Σu' + H(m)) mod q == c
//
// It is linear, so anyone can recover a working secret from pk by searching
// the (High−Low+1)^n candidate vectors. Do not use it to protect anything.
type ToyScheme struct {
	q      int64
	a      Matrix
	low    int64
	high   int64
	digest Digest
	rand   io.Reader
}

var (
	_ Scheme    = (*ToyScheme)(nil)
	_ Recoverer = (*ToyScheme)(nil)
)

// NewToyScheme validates p and returns a ToyScheme.
func NewToyScheme(p ToyParams) (*ToyScheme, error) {
	if p.Q < 2 || p.Q > MaxToyModulus {
		return nil, fmt.Errorf("%w: modulus %d out of range [2, %d]", ErrInvalidParams, p.Q, MaxToyModulus)
	}
	q := int64(p.Q)

	low, high := p.Low, p.High
	if low == 0 && high == 0 {
		low, high = DefaultToyLow, DefaultToyHigh
	}
	if low > high {
		return nil, fmt.Errorf("%w: coefficient range [%d, %d] is empty", ErrInvalidParams, low, high)
	}
	if abs(low) >= q || abs(high) >= q {
		return nil, fmt.Errorf("%w: coefficient range [%d, %d] exceeds modulus %d", ErrInvalidParams, low, high, q)
	}

	n := len(p.Matrix)
	if n == 0 {
		return nil, fmt.Errorf("%w: matrix is empty", ErrInvalidParams)
	}
	a := make(Matrix, n)
	for i, row := range p.Matrix {
		if len(row) != n {
			return nil, fmt.Errorf("%w: matrix row %d has %d entries, want %d", ErrInvalidParams, i, len(row), n)
		}
		for j, v := range row {
			if v < 0 || v >= q {
				return nil, fmt.Errorf("%w: matrix entry [%d][%d]=%d not in [0, %d)", ErrInvalidParams, i, j, v, q)
			}
		}
		a[i] = append([]int64(nil), row...)
	}

	digest := p.Digest
	if digest == nil {
		digest = AdditiveDigest
	}
	r := p.Rand
	if r == nil {
		r = rand.Reader
	}

	return &ToyScheme{q: q, a: a, low: low, high: high, digest: digest, rand: r}, nil
}

// NewToyMatrix samples an n×n matrix with entries uniform in [0, q).
func NewToyMatrix(n int, q uint32, r io.Reader) (Matrix, error) {
	if n <= 0 || q < 2 || q > MaxToyModulus {
		return nil, fmt.Errorf("%w: n=%d q=%d", ErrInvalidParams, n, q)
	}
	if r == nil {
		r = rand.Reader
	}
	bound := big.NewInt(int64(q))
	a := make(Matrix, n)
	for i := range a {
		a[i] = make([]int64, n)
		for j := range a[i] {
			v, err := rand.Int(r, bound)
			if err != nil {
				return nil, fmt.Errorf("sampling matrix: %w", err)
			}
			a[i][j] = v.Int64()
		}
	}
	return a, nil
}

// Name implements Scheme.
func (t *ToyScheme) Name() string { return SchemeToy }

// Modulus returns q.
func (t *ToyScheme) Modulus() uint32 { return uint32(t.q) }

// Dimension returns n.
func (t *ToyScheme) Dimension() int { return len(t.a) }

// CoefficientRange returns the inclusive secret coefficient bounds.
func (t *ToyScheme) CoefficientRange() (low, high int64) { return t.low, t.high }

// Matrix returns a copy of the shared public matrix A.
func (t *ToyScheme) Matrix() Matrix {
	out := make(Matrix, len(t.a))
	for i, row := range t.a {
		out[i] = append([]int64(nil), row...)
	}
	return out
}

// PublicKeySize implements Scheme.
func (t *ToyScheme) PublicKeySize() int { return 4 * len(t.a) }

func (t *ToyScheme) mod(x int64) int64 {
	x %= t.q
	if x < 0 {
		x += t.q
	}
	return x
}

// mulVec returns A·v mod q.
func (t *ToyScheme) mulVec(v Vector) Vector {
	out := make(Vector, len(t.a))
	for i, row := range t.a {
		var acc int64
		for j, aij := range row {
			acc = t.mod(acc + aij*t.mod(v[j]))
		}
		out[i] = acc
	}
	return out
}

func (t *ToyScheme) sample() (Vector, error) {
	span := big.NewInt(t.high - t.low + 1)
	v := make(Vector, len(t.a))
	for i := range v {
		x, err := rand.Int(t.rand, span)
		if err != nil {
			return nil, fmt.Errorf("sampling coefficients: %w", err)
		}
		v[i] = x.Int64() + t.low
	}
	return v, nil
}

func (t *ToyScheme) checkSecret(s Vector) error {
	if len(s) != len(t.a) {
		return fmt.Errorf("%w: secret has %d coefficients, want %d", ErrMalformedKey, len(s), len(t.a))
	}
	for i, v := range s {
		if v < t.low || v > t.high {
			return fmt.Errorf("%w: secret coefficient %d=%d not in [%d, %d]", ErrMalformedKey, i, v, t.low, t.high)
		}
	}
	return nil
}

func (t *ToyScheme) reduced(v Vector) bool {
	if len(v) != len(t.a) {
		return false
	}
	for _, x := range v {
		if x < 0 || x >= t.q {
			return false
		}
	}
	return true
}

// challengeScalar computes c = (Σu + H(m)) mod q.
func (t *ToyScheme) challengeScalar(u Vector, message []byte) int64 {
	var sum int64
	for _, x := range u {
		sum = t.mod(sum + x)
	}
	return t.mod(sum + int64(t.digest.Digest(message, uint32(t.q))))
}

// PublicVector returns pk = A·s mod q.
func (t *ToyScheme) PublicVector(s Vector) (Vector, error) {
	if err := t.checkSecret(s); err != nil {
		return nil, err
	}
	return t.mulVec(s), nil
}

// GenerateVector samples a secret vector and returns it with its public key.
func (t *ToyScheme) GenerateVector() (s, pk Vector, err error) {
	s, err = t.sample()
	if err != nil {
		return nil, nil, err
	}
	return s, t.mulVec(s), nil
}

// SignVector returns the response σ and challenge scalar c for message.
func (t *ToyScheme) SignVector(message []byte, s Vector) (Vector, int64, error) {
	if err := t.checkSecret(s); err != nil {
		return nil, 0, err
	}
	r, err := t.sample()
	if err != nil {
		return nil, 0, err
	}
	c := t.challengeScalar(t.mulVec(r), message)

	sigma := make(Vector, len(s))
	for i := range s {
		sigma[i] = t.mod(r[i] + c*s[i])
	}
	return sigma, c, nil
}

// VerifyVector reports whether (σ, c) is a valid signature on message under pk.
func (t *ToyScheme) VerifyVector(message []byte, sigma Vector, c int64, pk Vector) bool {
	if !t.reduced(sigma) || !t.reduced(pk) || c < 0 || c >= t.q {
		return false
	}
	as := t.mulVec(sigma)
	u := make(Vector, len(as))
	for i := range as {
		u[i] = t.mod(as[i] - c*pk[i])
	}
	got := t.challengeScalar(u, message)
	return subtle.ConstantTimeEq(int32(got), int32(c)) == 1
}

// GenerateKey implements Scheme.
func (t *ToyScheme) GenerateKey() (*KeyPair, error) {
	s, pk, err := t.GenerateVector()
	if err != nil {
		return nil, err
	}
	return &KeyPair{PublicKey: encodeReduced(pk), SecretKey: encodeSigned(s)}, nil
}

// Sign implements Scheme. The signature encodes σ followed by c.
func (t *ToyScheme) Sign(message, secretKey []byte) ([]byte, error) {
	s, err := decodeSigned(secretKey, len(t.a))
	if err != nil {
		return nil, err
	}
	sigma, c, err := t.SignVector(message, s)
	if err != nil {
		return nil, err
	}
	return encodeReduced(append(sigma, c)), nil
}

// Verify implements Scheme.
func (t *ToyScheme) Verify(message, signature, publicKey []byte) bool {
	sig, err := decodeReduced(signature, len(t.a)+1)
	if err != nil {
		return false
	}
	pk, err := decodeReduced(publicKey, len(t.a))
	if err != nil {
		return false
	}
	n := len(t.a)
	return t.VerifyVector(message, sig[:n], sig[n], pk)
}

// PublicFromSecret implements Scheme.
func (t *ToyScheme) PublicFromSecret(secretKey []byte) ([]byte, error) {
	s, err := decodeSigned(secretKey, len(t.a))
	if err != nil {
		return nil, err
	}
	pk, err := t.PublicVector(s)
	if err != nil {
		return nil, err
	}
	return encodeReduced(pk), nil
}

// DecodePublicKey decodes a toy public key into its vector form.
func (t *ToyScheme) DecodePublicKey(publicKey []byte) (Vector, error) {
	pk, err := decodeReduced(publicKey, len(t.a))
	if err != nil {
		return nil, err
	}
	if !t.reduced(pk) {
		return nil, fmt.Errorf("%w: public key component out of range", ErrMalformedKey)
	}
	return pk, nil
}

// EncodeSecretKey encodes a secret vector in the byte form Sign accepts.
func (t *ToyScheme) EncodeSecretKey(s Vector) ([]byte, error) {
	if err := t.checkSecret(s); err != nil {
		return nil, err
	}
	return encodeSigned(s), nil
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
