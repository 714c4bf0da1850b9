// File: thumbprint.go

package ekeytoken

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// JWK is the subset of RFC 7517 members this service needs: enough to
// describe an EC (P-256/P-384/P-521) or OKP (Ed25519) public key for DPoP
// binding. Unknown/extra members (alg, use, kid, ...) are accepted on
// decode but never participate in the thumbprint.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Thumbprint computes the RFC 7638 canonical JSON thumbprint of a JWK:
// the required members serialized in lexicographic order with no
// whitespace, SHA-256'd, and base64url-encoded without padding.
//
// encoding/json already marshals Go maps with string keys in sorted key
// order, which for the EC ("crv","kty","x","y") and OKP ("crv","kty","x")
// member sets is exactly RFC 7638's required lexicographic ordering — so
// no bespoke canonicalizer is needed.
func Thumbprint(jwk JWK) (string, error) {
	var members map[string]string
	switch jwk.Kty {
	case "EC":
		if jwk.Crv == "" || jwk.X == "" || jwk.Y == "" {
			return "", fmt.Errorf("incomplete EC jwk: crv/x/y required")
		}
		members = map[string]string{"crv": jwk.Crv, "kty": jwk.Kty, "x": jwk.X, "y": jwk.Y}
	case "OKP":
		if jwk.Crv == "" || jwk.X == "" {
			return "", fmt.Errorf("incomplete OKP jwk: crv/x required")
		}
		members = map[string]string{"crv": jwk.Crv, "kty": jwk.Kty, "x": jwk.X}
	default:
		return "", fmt.Errorf("unsupported jwk kty %q", jwk.Kty)
	}

	canonical, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("marshal canonical jwk: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// ECPublicKeyJWK converts an ECDSA P-256 public key into its JWK
// representation, coordinates padded to the curve's byte size per RFC 7518
// §6.2.1.
func ECPublicKeyJWK(pub *ecdsa.PublicKey) JWK {
	size := (pub.Curve.Params().BitSize + 7) / 8
	return JWK{
		Kty: "EC",
		Crv: pub.Curve.Params().Name,
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, size))),
	}
}

// Ed25519PublicKeyJWK converts an Ed25519 public key into its JWK
// (OKP/Ed25519) representation.
func Ed25519PublicKeyJWK(pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// JWKToPublicKey reconstructs a crypto.PublicKey (*ecdsa.PublicKey or
// ed25519.PublicKey) from a JWK's EC or OKP members. Grounded on the same
// coordinate-decoding approach as an embedded DPoP proof key: base64url
// (no padding) big-endian integers per RFC 7518 §6.3.
func JWKToPublicKey(jwk JWK) (crypto.PublicKey, error) {
	switch jwk.Kty {
	case "EC":
		var curve elliptic.Curve
		switch jwk.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported EC curve %q", jwk.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("decode jwk.x: %w", err)
		}
		y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
		if err != nil {
			return nil, fmt.Errorf("decode jwk.y: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case "OKP":
		if jwk.Crv != "Ed25519" {
			return nil, fmt.Errorf("unsupported OKP curve %q", jwk.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("decode jwk.x: %w", err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 jwk.x has wrong length %d", len(x))
		}
		return ed25519.PublicKey(x), nil
	default:
		return nil, fmt.Errorf("unsupported jwk kty %q", jwk.Kty)
	}
}

// NormalizeCertFingerprint strips ':' separators and lowercases a
// certificate fingerprint, preserving every hex byte. Used both at
// issuance (mTLS bind) and verification (CertExtractor output) so the two
// sides compare equal regardless of the separator convention the caller
// used.
func NormalizeCertFingerprint(fingerprint string) string {
	return strings.ToLower(strings.ReplaceAll(fingerprint, ":", ""))
}

// CertDERFingerprint computes the normalized (lowercase, no separators)
// SHA-256 fingerprint of a certificate's DER bytes, as carried in cnf.jkt
// for mTLS-bound tokens.
func CertDERFingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
