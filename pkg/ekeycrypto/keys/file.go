// File: file.go

package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

// Config locates the PEM-encoded private key a FileProvider loads at
// construction, grounded on toolhive's keys.Config{KeyDir,SigningKeyFile}
// shape.
type Config struct {
	KeyDir         string
	SigningKeyFile string
	Algorithm      ekeytoken.Algorithm // defaults to AlgES256
}

// FileProvider implements ekeytoken.KeyProvider by loading a single
// private key from a PEM file, supporting ES256 (SEC1 or PKCS#8 ECDSA) and
// EdDSA (PKCS#8 Ed25519), grounded on
// pkg/gourdiantoken-master/gourdiantoken.go's parseECDSAPrivateKey /
// parseEdDSAPrivateKey.
type FileProvider struct {
	alg        ekeytoken.Algorithm
	ecKey      *ecdsa.PrivateKey
	ed25519Key ed25519.PrivateKey
	jwk        ekeytoken.JWK
}

// NewFileProvider reads and parses the signing key file, failing fast if
// it cannot be read or does not match the requested algorithm.
func NewFileProvider(cfg Config) (*FileProvider, error) {
	if cfg.SigningKeyFile == "" {
		return nil, fmt.Errorf("signing key file is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = ekeytoken.AlgES256
	}

	path := filepath.Join(cfg.KeyDir, cfg.SigningKeyFile)
	if err := checkFilePermissions(path, 0600); err != nil {
		return nil, fmt.Errorf("insecure signing key file permissions: %w", err)
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	switch alg {
	case ekeytoken.AlgES256:
		key, err := parseECDSAPrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ECDSA signing key: %w", err)
		}
		return &FileProvider{alg: alg, ecKey: key, jwk: ekeytoken.ECPublicKeyJWK(&key.PublicKey)}, nil
	case ekeytoken.AlgEdDSA:
		key, err := parseEdDSAPrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EdDSA signing key: %w", err)
		}
		pub, ok := key.Public().(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not a valid EdDSA private key")
		}
		return &FileProvider{alg: alg, ed25519Key: key, jwk: ekeytoken.Ed25519PublicKeyJWK(pub)}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
}

// Sign implements ekeytoken.KeyProvider.
func (p *FileProvider) Sign(_ context.Context, signingInput []byte) ([]byte, error) {
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
func (p *FileProvider) PublicJWK(context.Context) (ekeytoken.JWK, error) {
	return p.jwk, nil
}

// Algorithm implements ekeytoken.KeyProvider.
func (p *FileProvider) Algorithm() ekeytoken.Algorithm {
	return p.alg
}

// checkFilePermissions verifies path is not readable by group or others,
// grounded verbatim on gourdiantoken.go's checkFilePermissions: a private
// key file world- or group-readable on disk defeats every claim the
// Verifier makes about possession of the corresponding public key.
func checkFilePermissions(path string, requiredPerm os.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	actualPerm := info.Mode().Perm()
	if actualPerm&^requiredPerm != 0 {
		return fmt.Errorf("file %s has permissions %#o, expected %#o", path, actualPerm, requiredPerm)
	}
	return nil
}

func parseECDSAPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the ECDSA private key")
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}
	key, ok := pkcs8Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid ECDSA private key")
	}
	return key, nil
}

func parseEdDSAPrivateKey(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the private key")
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EdDSA private key: %w", err)
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid EdDSA private key")
	}
	return key, nil
}
