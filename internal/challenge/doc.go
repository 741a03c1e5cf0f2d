// Package challenge issues and consumes single-use authentication nonces.
//
// Each principal moves through NoChallenge → Issued → Consumed. Issuing again
// while a challenge is outstanding replaces it (last-issued-wins), so a
// signature over the earlier nonce can no longer log in. Consume deletes the
// slot under the lock before returning it, which closes the race between two
// concurrent logins observing the same nonce.
package challenge
