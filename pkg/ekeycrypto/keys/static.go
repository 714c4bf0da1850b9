// File: static.go

package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

// StaticProvider is an in-memory ekeytoken.KeyProvider generated at
// construction time; it never touches the filesystem, grounded on
// toolhive's test-only generateTestKey/GeneratingProvider helpers.
type StaticProvider struct {
	alg        ekeytoken.Algorithm
	ecKey      *ecdsa.PrivateKey
	ed25519Key ed25519.PrivateKey
	jwk        ekeytoken.JWK
}

// NewStaticProvider generates a fresh keypair for alg (AlgES256 or
// AlgEdDSA; defaults to AlgES256).
func NewStaticProvider(alg ekeytoken.Algorithm) (*StaticProvider, error) {
	if alg == "" {
		alg = ekeytoken.AlgES256
	}
	switch alg {
	case ekeytoken.AlgES256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		return &StaticProvider{alg: alg, ecKey: key, jwk: ekeytoken.ECPublicKeyJWK(&key.PublicKey)}, nil
	case ekeytoken.AlgEdDSA:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}
		return &StaticProvider{alg: alg, ed25519Key: priv, jwk: ekeytoken.Ed25519PublicKeyJWK(pub)}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
}

// Sign implements ekeytoken.KeyProvider.
func (p *StaticProvider) Sign(_ context.Context, signingInput []byte) ([]byte, error) {
	switch p.alg {
	case ekeytoken.AlgES256:
		return signES256(p.ecKey, signingInput)
	case ekeytoken.AlgEdDSA:
		return ed25519.Sign(p.ed25519Key, signingInput), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", p.alg)
	}
}

// PublicJWK implements ekeytoken.KeyProvider.
func (p *StaticProvider) PublicJWK(context.Context) (ekeytoken.JWK, error) {
	return p.jwk, nil
}

// Algorithm implements ekeytoken.KeyProvider.
func (p *StaticProvider) Algorithm() ekeytoken.Algorithm {
	return p.alg
}
