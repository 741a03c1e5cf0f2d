// Package lattice provides the signature primitive used for challenge-response
// authentication.
//
// # Backends
//
// All backends implement Scheme (GenerateKey, Sign, Verify) and are selected by
// name through New:
//
//   - "dilithium2": CRYSTALS-Dilithium level 2 via cloudflare/circl
//   - "dilithium3": CRYSTALS-Dilithium level 3 via cloudflare/circl
//   - "toy": the teaching construction below
//
// # Toy Construction
//
// A shared public matrix A (n×n over Z_q) is built once and handed to
// NewToyScheme. Secrets are vectors with small coefficients (default [-2, 2]).
//
//	pk = A·s mod q
//	σ  = r + c·s mod q,  c = (Σ(A·r) + H(m)) mod q
//
// Verification recomputes A·σ − c·pk = A·r and checks the challenge scalar.
// The message digest H is pluggable (Digest): the additive digest mirrors the
// classroom version, SHA3Digest swaps in a cryptographic hash.
//
// The construction is linear with a tiny keyspace. ToyScheme implements
// Recoverer, and RecoverSecret finds a working secret from the public key by
// exhaustive search. Dilithium does not implement Recoverer.
//
// # Usage
//
//	scheme, err := lattice.New(lattice.Params{Name: lattice.SchemeDilithium2})
//	kp, err := scheme.GenerateKey()
//	sig, err := scheme.Sign(msg, kp.SecretKey)
//	ok := scheme.Verify(msg, sig, kp.PublicKey)
package lattice
