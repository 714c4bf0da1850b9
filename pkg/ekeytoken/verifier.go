// File: verifier.go

package ekeytoken

import (
	"context"
	"crypto/tls"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyRequest is the Verifier's single input: the presented token, an
// optional DPoP proof, and the protected request's method/URL, per spec.md
// §4.5's operation signature. TLS is read only for mTLS-bound tokens.
type VerifyRequest struct {
	Token  string
	Pop    string
	Method string
	URL    string
	TLS    *tls.ConnectionState
}

// VerificationResult is returned on a complete, successful verify, per
// spec.md §4.5 step 8.
type VerificationResult struct {
	Sub   string
	Aud   string
	Cap   Capability
	Trace string
}

// VerifierConfig bounds token issuer/audience and the clock tolerance
// applied to exp and DPoP iat comparisons, per spec.md §6.
type VerifierConfig struct {
	IssuerURL             string
	Audience              string
	ClockToleranceSeconds int64
}

// Verifier parses and validates an inbound E-Key plus its proof of
// possession. It is polymorphic over Clock, UsageStore, KeyProvider,
// AuditSink, and CertExtractor, per spec.md §9's design note; binding mode
// is a tagged value on the token header, switched on rather than
// subclassed.
type Verifier struct {
	cfg           VerifierConfig
	keys          KeyProvider
	usage         UsageStore
	audit         AuditSink
	clock         Clock
	certExtractor CertExtractor
}

// NewVerifier constructs a Verifier. audit may be nil, in which case events
// are discarded via NoopAuditSink.
func NewVerifier(cfg VerifierConfig, keys KeyProvider, usage UsageStore, audit AuditSink, clock Clock, certExtractor CertExtractor) *Verifier {
	if cfg.ClockToleranceSeconds <= 0 {
		cfg.ClockToleranceSeconds = 5
	}
	if audit == nil {
		audit = NoopAuditSink{}
	}
	return &Verifier{cfg: cfg, keys: keys, usage: usage, audit: audit, clock: clock, certExtractor: certExtractor}
}

// Verify implements spec.md §4.5's eight-step, strictly ordered check. Each
// step short-circuits the rest.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	// Step 1: presence. Peek the header (unverified) only to learn bind
	// mode, which governs whether pop is required.
	if req.Token == "" {
		return nil, NewError(ErrInvalidRequest, "token is required")
	}
	peeked := &tokenClaims{}
	peekedTok, _, err := jwt.NewParser().ParseUnverified(req.Token, peeked)
	if err != nil {
		return nil, WrapError(ErrInvalidRequest, "malformed token", err)
	}
	bindHeader, _ := peekedTok.Header["bind"].(string)
	bind := BindMode(bindHeader)
	if bind == BindDPoP && req.Pop == "" {
		return nil, NewError(ErrInvalidRequest, "pop is required for bind=DPoP")
	}

	// Step 2: signature + standard claims.
	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{string(v.keys.Algorithm())}),
		jwt.WithIssuer(v.cfg.IssuerURL),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithLeeway(toleranceDuration(v.cfg.ClockToleranceSeconds)),
		jwt.WithTimeFunc(func() time.Time { return unixTime(v.clock.Now()) }),
	)
	if _, err := parser.ParseWithClaims(req.Token, claims, v.keyFunc(ctx)); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// claims is already populated: golang-jwt unmarshals the
			// payload before running expiry validation, so sub/trace are
			// recoverable here per spec.md §7's "if recoverable."
			return v.deny(ErrExpiredToken, claims.Subject, claims.Trace, "token expired", claims.Cap.Action)
		}
		return nil, WrapError(ErrInvalidToken, "token signature or claims invalid", err)
	}

	sub := claims.Subject
	trace := claims.Trace

	// Step 3: capability presence.
	method, path, err := ParseAction(claims.Cap.Action)
	if err != nil {
		return v.deny(ErrInvalidToken, sub, trace, "missing or malformed cap.action", "")
	}

	// Step 4: action alignment.
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, WrapError(ErrInvalidRequest, "malformed request url", err)
	}
	if strings.ToUpper(req.Method) != method || reqURL.Path != path {
		return v.deny(ErrCapabilityMismatch, sub, trace, "request method/path does not match cap.action", claims.Cap.Action)
	}

	// Step 5: trace presence.
	if trace == "" {
		return v.deny(ErrInvalidToken, sub, trace, "missing trace claim", claims.Cap.Action)
	}

	// Step 6: usage consumption.
	now := v.clock.Now()
	exp := claims.ExpiresAt.Unix()
	if err := v.usage.Consume(ctx, trace, claims.Cap.EffectiveLimit(), exp, now); err != nil {
		var usageErr *UsageStoreError
		if errors.As(err, &usageErr) {
			switch usageErr.Kind {
			case UsageTokenExpired:
				return v.deny(ErrExpiredToken, sub, trace, "usage store reports trace expired", claims.Cap.Action)
			case UsageLimitExhausted:
				return v.deny(ErrReplayDetected, sub, trace, "usage limit exhausted", claims.Cap.Action)
			}
		}
		return nil, WrapError(ErrInvalidRequest, "usage store failure", err)
	}

	// Step 7: PoP verification, branched on bind mode.
	switch bind {
	case BindDPoP:
		if err := v.verifyDPoP(req, claims, now); err != nil {
			if ee, ok := err.(*Error); ok {
				return v.deny(ee.Kind, sub, trace, ee.Message, claims.Cap.Action)
			}
			return v.deny(ErrInvalidProof, sub, trace, err.Error(), claims.Cap.Action)
		}
	case BindMTLS:
		if err := v.verifyMTLS(req, claims); err != nil {
			if ee, ok := err.(*Error); ok {
				return v.deny(ee.Kind, sub, trace, ee.Message, claims.Cap.Action)
			}
			return v.deny(ErrInvalidProof, sub, trace, err.Error(), claims.Cap.Action)
		}
	default:
		return v.deny(ErrInvalidToken, sub, trace, "unsupported bind mode", claims.Cap.Action)
	}

	// Step 8: allowed.
	v.audit.Record(AuditEvent{
		Timestamp: unixTime(now),
		Sub:       sub,
		Trace:     trace,
		Outcome:   OutcomeAllowed,
		Action:    claims.Cap.Action,
	})
	return &VerificationResult{Sub: sub, Aud: v.cfg.Audience, Cap: claims.Cap, Trace: trace}, nil
}

func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		jwk, err := v.keys.PublicJWK(ctx)
		if err != nil {
			return nil, err
		}
		return JWKToPublicKey(jwk)
	}
}

// verifyDPoP implements spec.md §4.5 step 7's DPoP branch (a-d).
func (v *Verifier) verifyDPoP(req VerifyRequest, claims *tokenClaims, now int64) error {
	proof, err := ParseDPoPProof(req.Pop)
	if err != nil {
		return NewError(ErrInvalidProof, "dpop proof invalid: "+err.Error())
	}

	if strings.ToUpper(proof.Htm) != strings.ToUpper(req.Method) {
		return NewError(ErrInvalidProof, "dpop htm does not match request method")
	}

	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return NewError(ErrInvalidProof, "malformed request url")
	}
	canonicalHtu := reqURL.Scheme + "://" + reqURL.Host + reqURL.Path
	if proof.Htu != canonicalHtu {
		return NewError(ErrInvalidProof, "dpop htu does not match request origin+pathname")
	}

	if proof.Nonce != claims.Trace {
		return NewError(ErrInvalidProof, "dpop nonce does not match token trace")
	}

	tolerance := v.cfg.ClockToleranceSeconds
	delta := now - proof.Iat
	if delta < 0 {
		delta = -delta
	}
	if delta > tolerance {
		return NewError(ErrInvalidProof, "dpop iat outside clock tolerance")
	}

	if claims.Cnf.JKT == "" {
		return NewError(ErrInvalidToken, "token missing cnf.jkt")
	}
	thumb, err := Thumbprint(proof.JWK)
	if err != nil {
		return NewError(ErrInvalidProof, "failed to thumbprint dpop jwk")
	}
	if thumb != claims.Cnf.JKT {
		return NewError(ErrInvalidProof, "dpop key thumbprint does not match cnf.jkt")
	}
	return nil
}

// verifyMTLS implements spec.md §4.5 step 7's mTLS branch.
func (v *Verifier) verifyMTLS(req VerifyRequest, claims *tokenClaims) error {
	if v.certExtractor == nil {
		return NewError(ErrInvalidProof, "mTLS binding is not enabled on this verifier")
	}
	peer, err := v.certExtractor.Extract(req.TLS)
	if err != nil {
		return NewError(ErrInvalidProof, "failed to extract peer certificate")
	}
	if peer == nil {
		return NewError(ErrInvalidRequest, "no client certificate presented")
	}
	if claims.Cnf.JKT == "" {
		return NewError(ErrInvalidToken, "token missing cnf.jkt")
	}
	if NormalizeCertFingerprint(peer.Fingerprint) != claims.Cnf.JKT {
		return NewError(ErrInvalidProof, "client certificate fingerprint does not match cnf.jkt")
	}
	return nil
}

// deny emits the audit event this step's failure requires (trace and sub
// are recoverable from this point in the check order onward) and returns
// the corresponding typed error.
func (v *Verifier) deny(kind ErrorKind, sub, trace, reason, action string) (*VerificationResult, error) {
	v.audit.Record(AuditEvent{
		Timestamp: unixTime(v.clock.Now()),
		Sub:       sub,
		Trace:     trace,
		Outcome:   outcomeForKind(kind),
		Reason:    reason,
		Action:    action,
	})
	return nil, NewError(kind, reason)
}

func outcomeForKind(kind ErrorKind) string {
	switch kind {
	case ErrExpiredToken:
		return OutcomeExpired
	case ErrReplayDetected:
		return OutcomeReplayBlocked
	case ErrCapabilityMismatch:
		return OutcomeCapMismatch
	case ErrInvalidProof:
		return OutcomeInvalidProof
	default:
		return OutcomeInvalidProof
	}
}
