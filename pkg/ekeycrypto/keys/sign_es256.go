// File: sign_es256.go

package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
)

// signES256 produces a JWS ES256 signature: SHA-256 the signing input, ECDSA
// sign it, and concatenate r||s as fixed-width big-endian integers (RFC
// 7518 §3.4) rather than the ASN.1 DER pair crypto/ecdsa.Sign's raw r,s
// would otherwise imply. No pack library exposes this narrow "sign raw
// bytes, return JWS-shaped r||s" operation independent of holding the JWS
// library's own private key value — golang-jwt itself only does this
// signing internally, and KeyProvider is required to keep private material
// behind its own Sign method rather than handing it to the jwt library
// directly — so this is stdlib crypto/ecdsa, justified.
func signES256(key *ecdsa.PrivateKey, signingInput []byte) ([]byte, error) {
	hash := sha256.Sum256(signingInput)
	r, s, err := ecdsa.Sign(rand.Reader, key, hash[:])
	if err != nil {
		return nil, err
	}
	keyBytes := (key.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*keyBytes)
	r.FillBytes(sig[:keyBytes])
	s.FillBytes(sig[keyBytes:])
	return sig, nil
}
