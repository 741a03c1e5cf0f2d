// Package store provides principal persistence for the authentication service.
//
// # Architecture
//
// PrincipalStore is the only interface. Two implementations exist:
//
//   - MemoryStore: in-memory map guarded by an RWMutex (default)
//   - SQLiteStore: modernc.org/sqlite, for deployments that want principals
//     to survive restarts
//
// # Data Model
//
// A Principal holds an ID, the signature scheme name, the public key, and a
// display fingerprint ("sig1" + base58(sha256(public key))). Secret keys are
// never stored; the type has no field for them.
//
// Fingerprints are not unique. The toy scheme's keyspace is small enough that
// two principals may legitimately draw the same public key.
//
// # Errors
//
//   - ErrNotFound: principal does not exist
//   - ErrPrincipalExists: CreatePrincipal on a taken ID
package store
