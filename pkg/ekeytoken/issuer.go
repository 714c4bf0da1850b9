// File: issuer.go

package ekeytoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// BindMode selects how a token's cnf.jkt binding is established and how the
// Verifier expects proof of possession to be presented.
type BindMode string

const (
	BindDPoP BindMode = "DPoP"
	BindMTLS BindMode = "mTLS"
)

// IssueRequest is the Issuer's single input, mirroring spec.md §4.4's
// request fields.
type IssueRequest struct {
	Sub             string
	Aud             string
	Cap             Capability
	TTL             int64 // seconds, 1..MaxTTLSeconds
	Bind            BindMode
	JWK             *JWK   // required iff Bind == BindDPoP
	CertFingerprint string // required iff Bind == BindMTLS
}

// TokenResponse is returned from a successful Issue call, matching spec.md
// §4.4 step 6 and the §6 HTTP issuance response body.
type TokenResponse struct {
	Token     string
	Trace     string
	ExpiresAt int64
	ExpiresIn int64
	CnfJKT    string
}

// tokenClaims is the JWT claim set signed into every E-Key, carrying the
// registered claims jwt.RegisteredClaims already covers plus the
// capability, confirmation, and trace claims spec.md §3 adds.
type tokenClaims struct {
	jwt.RegisteredClaims
	Cap   Capability `json:"cap"`
	Cnf   cnfClaim   `json:"cnf"`
	Trace string     `json:"trace"`
}

type cnfClaim struct {
	JKT string `json:"jkt"`
}

// IssuerConfig bounds the request fields an Issuer will accept, per spec.md
// §6 configuration inputs.
type IssuerConfig struct {
	IssuerURL     string
	MaxTTLSeconds int64
	MaxLimit      int
}

// Issuer mints signed E-Keys. It holds no mutable state beyond its
// collaborators, all of which are safe for concurrent use.
type Issuer struct {
	cfg   IssuerConfig
	keys  KeyProvider
	clock Clock
}

// NewIssuer constructs an Issuer bound to the given key provider and clock.
func NewIssuer(cfg IssuerConfig, keys KeyProvider, clock Clock) *Issuer {
	if cfg.MaxTTLSeconds <= 0 {
		cfg.MaxTTLSeconds = 60
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	return &Issuer{cfg: cfg, keys: keys, clock: clock}
}

// Issue implements spec.md §4.4's six-step algorithm.
func (iss *Issuer) Issue(ctx context.Context, req IssueRequest) (*TokenResponse, error) {
	// Step 1: validate cap.action and limit.
	if req.Cap.Limit == 0 {
		req.Cap.Limit = DefaultLimit
	}
	if err := req.Cap.Validate(); err != nil {
		return nil, WrapError(ErrInvalidRequest, "invalid capability", err)
	}
	if req.Cap.EffectiveLimit() > iss.cfg.MaxLimit {
		return nil, NewError(ErrInvalidRequest, fmt.Sprintf("cap.limit exceeds max_limit %d", iss.cfg.MaxLimit))
	}
	if req.Sub == "" {
		return nil, NewError(ErrInvalidRequest, "sub must not be empty")
	}
	if req.Aud == "" {
		return nil, NewError(ErrInvalidRequest, "aud must not be empty")
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = iss.cfg.MaxTTLSeconds
	}
	if ttl < 1 || ttl > iss.cfg.MaxTTLSeconds {
		return nil, NewError(ErrInvalidRequest, fmt.Sprintf("ttl %d out of range [1,%d]", ttl, iss.cfg.MaxTTLSeconds))
	}

	bind := req.Bind
	if bind == "" {
		bind = BindDPoP
	}

	// Step 2: now / exp.
	now := iss.clock.Now()
	exp := now + ttl

	// Step 3: compute jkt per bind mode.
	var jkt string
	switch bind {
	case BindDPoP:
		if req.JWK == nil {
			return nil, NewError(ErrInvalidBinding, "jwk is required for bind=DPoP")
		}
		thumb, err := Thumbprint(*req.JWK)
		if err != nil {
			return nil, WrapError(ErrInvalidBinding, "failed to thumbprint jwk", err)
		}
		jkt = thumb
	case BindMTLS:
		if req.CertFingerprint == "" {
			return nil, NewError(ErrInvalidBinding, "cert_fingerprint is required for bind=mTLS")
		}
		jkt = NormalizeCertFingerprint(req.CertFingerprint)
	default:
		return nil, NewError(ErrInvalidRequest, fmt.Sprintf("unsupported bind mode %q", bind))
	}

	// Step 4: generate trace — 128 random bits, hex-encoded.
	trace := generateTrace()

	// Step 5: build claims + header, sign via KeyProvider.
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss.cfg.IssuerURL,
			Subject:   req.Sub,
			Audience:  jwt.ClaimStrings{req.Aud},
			IssuedAt:  jwt.NewNumericDate(unixTime(now)),
			ExpiresAt: jwt.NewNumericDate(unixTime(exp)),
		},
		Cap:   req.Cap,
		Cnf:   cnfClaim{JKT: jkt},
		Trace: trace,
	}

	token := jwt.NewWithClaims(signingMethodFor(iss.keys.Algorithm()), claims)
	token.Header["typ"] = "EKEY"
	token.Header["bind"] = string(bind)

	signed, err := token.SignedString(keyProviderSigner{ctx: ctx, provider: iss.keys})
	if err != nil {
		return nil, WrapError(ErrSignerFailure, "failed to sign token", err)
	}

	// Step 6: return response.
	return &TokenResponse{
		Token:     signed,
		Trace:     trace,
		ExpiresAt: exp,
		ExpiresIn: ttl,
		CnfJKT:    jkt,
	}, nil
}

// generateTrace returns a 128-bit random value, hex-encoded to 32 chars:
// 16 bytes read straight from crypto/rand, every bit of them random.
func generateTrace() string {
	var b [16]byte
	rand.Read(b[:]) // crypto/rand.Read never returns an error since Go 1.24
	return hex.EncodeToString(b[:])
}
