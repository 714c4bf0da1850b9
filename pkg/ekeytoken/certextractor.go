// File: certextractor.go

package ekeytoken

import (
	"crypto/tls"
	"crypto/x509"
	"net/url"
)

// PeerCertInfo is what a CertExtractor yields from an authenticated mTLS
// peer, per spec.md §4.7.
type PeerCertInfo struct {
	Fingerprint string
	Subject     string
	SpiffeID    string
}

// CertExtractor extracts client-certificate identity from a connection's
// TLS state. Returns nil, nil when no peer certificate is presented —
// the Verifier's mTLS branch translates a nil result to InvalidRequest,
// per spec.md §4.7 (no certificate presented is a request defect, not a
// failed proof).
type CertExtractor interface {
	Extract(state *tls.ConnectionState) (*PeerCertInfo, error)
}

// TLSCertExtractor reads the leaf peer certificate straight off
// *tls.ConnectionState, the contract every mTLS-terminating Go server
// ultimately has available; no pack example runs mTLS, so this is grounded
// directly on stdlib crypto/tls rather than a retrieved pattern.
type TLSCertExtractor struct{}

// Extract implements CertExtractor.
func (TLSCertExtractor) Extract(state *tls.ConnectionState) (*PeerCertInfo, error) {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil, nil
	}
	leaf := state.PeerCertificates[0]
	return &PeerCertInfo{
		Fingerprint: CertDERFingerprint(leaf.Raw),
		Subject:     leaf.Subject.String(),
		SpiffeID:    spiffeIDFromCert(leaf),
	}, nil
}

// spiffeIDFromCert returns the first URI SAN, if any looks like a SPIFFE
// ID (scheme "spiffe"), else "".
func spiffeIDFromCert(cert *x509.Certificate) string {
	for _, u := range cert.URIs {
		if isSpiffeURI(u) {
			return u.String()
		}
	}
	return ""
}

func isSpiffeURI(u *url.URL) bool {
	return u != nil && u.Scheme == "spiffe"
}
