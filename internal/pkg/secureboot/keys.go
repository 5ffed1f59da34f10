// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot

import (
	"crypto"
	"crypto/rsa"
	stdx509 "crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/siderolabs/crypto/x509"

	"github.com/basalt-os/basalt/internal/pkg/secureboot/pesign"
)

// Key material file names inside the key directory.
const (
	SigningCertAsset = "signing-cert.pem"
	SigningKeyAsset  = "signing-key.pem"
)

const keyValidity = 10 * 365 * 24 * time.Hour

// SigningKeys is the local signing keypair backing the trust chain.
type SigningKeys struct {
	key  *rsa.PrivateKey
	cert *stdx509.Certificate
}

// Interface check.
var _ pesign.CertificateSigner = (*SigningKeys)(nil)

// Signer returns the signer.
func (s *SigningKeys) Signer() crypto.Signer {
	return s.key
}

// Certificate returns the certificate.
func (s *SigningKeys) Certificate() *stdx509.Certificate {
	return s.cert
}

// GenerateSigningKeys creates a fresh signing keypair and stores it under dir.
func GenerateSigningKeys(dir, commonName string) (*SigningKeys, error) {
	currentTime := time.Now()

	opts := []x509.Option{
		x509.RSA(true),
		x509.Bits(4096),
		x509.CommonName(commonName),
		x509.Organization(commonName),
		x509.NotBefore(currentTime),
		x509.NotAfter(currentTime.Add(keyValidity)),
	}

	signingKey, err := x509.NewSelfSignedCertificateAuthority(opts...)
	if err != nil {
		return nil, fmt.Errorf("error generating signing key: %w", err)
	}

	if err = os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	if err = os.WriteFile(filepath.Join(dir, SigningCertAsset), signingKey.CrtPEM, 0o600); err != nil {
		return nil, err
	}

	if err = os.WriteFile(filepath.Join(dir, SigningKeyAsset), signingKey.KeyPEM, 0o600); err != nil {
		return nil, err
	}

	return LoadSigningKeys(dir)
}

// LoadSigningKeys loads a previously generated keypair from dir.
func LoadSigningKeys(dir string) (*SigningKeys, error) {
	certPEM, err := os.ReadFile(filepath.Join(dir, SigningCertAsset))
	if err != nil {
		return nil, err
	}

	keyPEM, err := os.ReadFile(filepath.Join(dir, SigningKeyAsset))
	if err != nil {
		return nil, err
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, errors.New("failed to decode signing certificate")
	}

	cert, err := stdx509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errors.New("failed to decode signing key")
	}

	key, err := stdx509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	return &SigningKeys{
		key:  key,
		cert: cert,
	}, nil
}

// SigningKeysPresent reports whether a keypair already exists under dir.
func SigningKeysPresent(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SigningKeyAsset))

	return err == nil
}
