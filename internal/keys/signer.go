// Package keys provides the signing and verification key material the
// token codec uses. Unlike the teacher's multi-key, per-tenant rotation
// scheme, this spec has exactly one active signing key at a time (spec.md
// §4.1); Signer is simplified accordingly, but keeps the same
// Reload-for-hot-rotation shape.
package keys

import (
	"context"
	"crypto"
	"crypto/rsa"
)

// Signer is the minimal contract the token codec needs: a signer for the
// current private key, its public counterpart for verification, and the
// algorithm it signs with.
type Signer interface {
	// CryptoSigner returns the current crypto.Signer and its key ID (may be
	// empty if the backend has no notion of key IDs).
	CryptoSigner(ctx context.Context) (crypto.Signer, string, error)

	// PublicKey returns the current public key used to verify tokens this
	// signer has issued.
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)

	// Algorithm returns the JWS signature algorithm name, e.g. "RS256".
	Algorithm() string

	// Reload forces the signer to re-read or re-fetch its key material on
	// the next call, rather than serving a cached copy. Implementations
	// that never cache may treat this as a no-op.
	Reload(ctx context.Context) error
}
