// File: jwtsign.go

package ekeytoken

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// keyProviderSigner adapts a KeyProvider + context into the "key" value
// golang-jwt's Token.SignedString expects, so Issue can call the library's
// normal signing path without ever holding the private key itself.
type keyProviderSigner struct {
	ctx      context.Context
	provider KeyProvider
}

// keyProviderSigningMethod wraps a registered jwt.SigningMethod so Sign
// delegates to a KeyProvider (kept opaque per spec.md §4.1) while Verify
// delegates to the real, library-registered method — the Verifier never
// needs this wrapper since it only ever checks signatures against a public
// key, which the registered methods already do correctly.
type keyProviderSigningMethod struct {
	delegate jwt.SigningMethod
}

func signingMethodFor(alg Algorithm) jwt.SigningMethod {
	switch alg {
	case AlgES256:
		return keyProviderSigningMethod{delegate: jwt.SigningMethodES256}
	case AlgEdDSA:
		return keyProviderSigningMethod{delegate: jwt.SigningMethodEdDSA}
	default:
		return keyProviderSigningMethod{delegate: jwt.SigningMethodES256}
	}
}

func (m keyProviderSigningMethod) Alg() string {
	return m.delegate.Alg()
}

func (m keyProviderSigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(keyProviderSigner)
	if !ok {
		return nil, fmt.Errorf("keyProviderSigningMethod: key must be a keyProviderSigner, got %T", key)
	}
	return signer.provider.Sign(signer.ctx, []byte(signingString))
}

func (m keyProviderSigningMethod) Verify(signingString string, sig []byte, key interface{}) error {
	return m.delegate.Verify(signingString, sig, key)
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func toleranceDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
