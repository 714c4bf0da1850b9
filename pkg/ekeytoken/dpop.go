// File: dpop.go

package ekeytoken

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DPoPProof is the decoded, signature-verified payload of a DPoP proof,
// per spec.md §3 and §4.5 step 7a-7c.
type DPoPProof struct {
	Htm   string
	Htu   string
	Iat   int64
	Nonce string
	JTI   string
	JWK   JWK
}

// ParseDPoPProof decodes a compact-JWS DPoP proof, verifies its own
// signature against the public key embedded in its header, and returns the
// decoded payload plus that embedded JWK. Grounded on
// other_examples' go-dpop Parse/keyFunc/parseJwk: a small dedicated parser
// rather than a generic JWS library, since the only JWS feature needed is
// "verify against a key embedded in your own header" — no general-purpose
// library in the pack exposes that narrow operation.
func ParseDPoPProof(proof string) (*DPoPProof, error) {
	var embeddedJWK JWK
	var jwkErr error

	token, err := jwt.NewParser(jwt.WithValidMethods([]string{"ES256", "EdDSA"})).Parse(proof, func(t *jwt.Token) (interface{}, error) {
		typ, _ := t.Header["typ"].(string)
		if !strings.EqualFold(typ, "dpop+jwt") {
			return nil, fmt.Errorf("dpop: typ header must be dpop+jwt, got %q", typ)
		}
		raw, ok := t.Header["jwk"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("dpop: missing embedded jwk header")
		}
		embeddedJWK, jwkErr = decodeHeaderJWK(raw)
		if jwkErr != nil {
			return nil, jwkErr
		}
		return JWKToPublicKey(embeddedJWK)
	})
	if err != nil {
		return nil, fmt.Errorf("dpop: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("dpop: unexpected claims type %T", token.Claims)
	}

	htm, _ := claims["htm"].(string)
	htu, _ := claims["htu"].(string)
	nonce, _ := claims["nonce"].(string)
	jti, _ := claims["jti"].(string)
	iatRaw, iatPresent := claims["iat"]
	if htm == "" || htu == "" || jti == "" || !iatPresent {
		return nil, fmt.Errorf("dpop: missing required claim among htm/htu/iat/jti")
	}

	iat, err := claimAsUnixSeconds(iatRaw)
	if err != nil {
		return nil, fmt.Errorf("dpop: iat: %w", err)
	}

	return &DPoPProof{
		Htm:   htm,
		Htu:   htu,
		Iat:   iat,
		Nonce: nonce,
		JTI:   jti,
		JWK:   embeddedJWK,
	}, nil
}

// decodeHeaderJWK lifts the kty/crv/x/y string members out of a decoded
// JOSE header's "jwk" map, stripping any optional members (alg, use, kid)
// before a later Thumbprint call, per RFC 7638 §3.2.
func decodeHeaderJWK(raw map[string]interface{}) (JWK, error) {
	kty, _ := raw["kty"].(string)
	if kty == "" {
		return JWK{}, fmt.Errorf("dpop: jwk.kty missing")
	}
	crv, _ := raw["crv"].(string)
	x, _ := raw["x"].(string)
	y, _ := raw["y"].(string)
	if x == "" {
		return JWK{}, fmt.Errorf("dpop: jwk.x missing")
	}
	return JWK{Kty: kty, Crv: crv, X: x, Y: y}, nil
}

// claimAsUnixSeconds accepts either a JSON number (decoded as float64 by
// encoding/json, the default for jwt.MapClaims) representing unix seconds.
func claimAsUnixSeconds(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case jwt.NumericDate:
		return n.Unix(), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
