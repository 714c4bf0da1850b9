// File: issuer_test.go

package ekeytoken

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyProvider wraps a StaticProvider-shaped stand-in so this package's
// tests do not import pkg/ekeycrypto/keys (which itself imports
// pkg/ekeytoken, and would create an import cycle).
type testKeyProvider struct {
	alg  Algorithm
	sign func(signingInput []byte) ([]byte, error)
	jwk  JWK
}

func (p testKeyProvider) Sign(_ context.Context, signingInput []byte) ([]byte, error) {
	return p.sign(signingInput)
}

func (p testKeyProvider) PublicJWK(context.Context) (JWK, error) {
	return p.jwk, nil
}

func (p testKeyProvider) Algorithm() Algorithm {
	return p.alg
}

func newTestEd25519Provider(t *testing.T) testKeyProvider {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testKeyProvider{
		alg:  AlgEdDSA,
		sign: func(signingInput []byte) ([]byte, error) { return ed25519.Sign(priv, signingInput), nil },
		jwk:  Ed25519PublicKeyJWK(pub),
	}
}

func newIssuerForTest(t *testing.T, maxTTL int64, maxLimit int) (*Issuer, testKeyProvider, *FixedClock) {
	t.Helper()
	provider := newTestEd25519Provider(t)
	clock := NewFixedClock(1_000_000)
	iss := NewIssuer(IssuerConfig{IssuerURL: "https://ekey.example/issuer", MaxTTLSeconds: maxTTL, MaxLimit: maxLimit}, provider, clock)
	return iss, provider, clock
}

func validIssueRequest() IssueRequest {
	return IssueRequest{
		Sub:  "user-1",
		Aud:  "payments-api",
		Cap:  Capability{Action: "POST:/payments"},
		TTL:  30,
		Bind: BindDPoP,
		JWK:  &JWK{Kty: "EC", Crv: "P-256", X: "x-coord", Y: "y-coord"},
	}
}

func TestIssuerIssueHappyPath(t *testing.T) {
	t.Parallel()

	iss, _, clock := newIssuerForTest(t, 60, MaxLimit)
	resp, err := iss.Issue(context.Background(), validIssueRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.Trace)
	assert.Equal(t, clock.Now()+30, resp.ExpiresAt)
	assert.Equal(t, int64(30), resp.ExpiresIn)
	assert.NotEmpty(t, resp.CnfJKT)
}

func TestIssuerIssueDefaultsTTLToMax(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)
	req := validIssueRequest()
	req.TTL = 0
	resp, err := iss.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(60), resp.ExpiresIn)
}

func TestIssuerIssueRejectsTTLOutOfRange(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)

	req := validIssueRequest()
	req.TTL = 61
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrInvalidRequest, ekeyErr.Kind)
}

func TestIssuerIssueRejectsEmptySubOrAud(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)

	req := validIssueRequest()
	req.Sub = ""
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)

	req = validIssueRequest()
	req.Aud = ""
	_, err = iss.Issue(context.Background(), req)
	require.Error(t, err)
}

func TestIssuerIssueRejectsLimitAboveMax(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, 5)
	req := validIssueRequest()
	req.Cap.Limit = 6
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrInvalidRequest, ekeyErr.Kind)
}

func TestIssuerIssueDefaultsLimitToOne(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)
	req := validIssueRequest()
	req.Cap.Limit = 0
	_, err := iss.Issue(context.Background(), req)
	require.NoError(t, err)
}

func TestIssuerIssueRejectsDPoPBindWithoutJWK(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)
	req := validIssueRequest()
	req.JWK = nil
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrInvalidBinding, ekeyErr.Kind)
}

func TestIssuerIssueRejectsMTLSBindWithoutFingerprint(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)
	req := validIssueRequest()
	req.Bind = BindMTLS
	req.JWK = nil
	req.CertFingerprint = ""
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrInvalidBinding, ekeyErr.Kind)
}

func TestIssuerIssuePropagatesSignerFailure(t *testing.T) {
	t.Parallel()

	provider := newTestEd25519Provider(t)
	provider.sign = func([]byte) ([]byte, error) { return nil, errors.New("kms unavailable") }
	clock := NewFixedClock(1_000_000)
	iss := NewIssuer(IssuerConfig{IssuerURL: "https://ekey.example/issuer", MaxTTLSeconds: 60, MaxLimit: MaxLimit}, provider, clock)

	_, err := iss.Issue(context.Background(), validIssueRequest())
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrSignerFailure, ekeyErr.Kind)
}

func TestIssuerIssueRejectsMalformedAction(t *testing.T) {
	t.Parallel()

	iss, _, _ := newIssuerForTest(t, 60, MaxLimit)
	req := validIssueRequest()
	req.Cap.Action = "payments"
	_, err := iss.Issue(context.Background(), req)
	require.Error(t, err)
	var ekeyErr *Error
	require.ErrorAs(t, err, &ekeyErr)
	assert.Equal(t, ErrInvalidRequest, ekeyErr.Kind)
}
