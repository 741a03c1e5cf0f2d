// Package revocation keeps the set of session tokens that were logged out
// before they expired. Each entry lives only as long as the token it denies.
package revocation
