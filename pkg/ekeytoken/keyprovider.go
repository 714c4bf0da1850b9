// File: keyprovider.go

package ekeytoken

import "context"

// Algorithm identifies the signing algorithm a KeyProvider uses. Only the
// two algorithms spec'd for the E-Key token header are supported.
type Algorithm string

const (
	// AlgES256 signs with ECDSA P-256 / SHA-256.
	AlgES256 Algorithm = "ES256"

	// AlgEdDSA signs with Ed25519.
	AlgEdDSA Algorithm = "EdDSA"
)

// KeyProvider owns the issuer's asymmetric signing keypair. Implementations
// may delegate to a local PEM file, an in-memory generated key (tests), or
// a remote KMS/HSM; sign must never expose private material to callers.
type KeyProvider interface {
	// Sign signs a pre-assembled JWS signing input (the base64url header
	// and payload segments joined by '.') and returns the raw signature
	// bytes, not yet base64url-encoded.
	Sign(ctx context.Context, signingInput []byte) ([]byte, error)

	// PublicJWK returns the public key for verifier consumption. Stable
	// for the lifetime of a key version.
	PublicJWK(ctx context.Context) (JWK, error)

	// Algorithm returns the fixed signing algorithm of this provider
	// instance.
	Algorithm() Algorithm
}
