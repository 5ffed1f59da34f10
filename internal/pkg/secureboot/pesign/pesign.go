// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pesign signs PE (portable executable) binaries.
package pesign

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/foxboron/go-uefi/authenticode"
)

// CertificateSigner is a provider of the certificate and the signer.
type CertificateSigner interface {
	Signer() crypto.Signer
	Certificate() *x509.Certificate
}

// Signer signs PE files with a CertificateSigner's key material.
type Signer struct {
	provider CertificateSigner
}

// NewSigner creates a new Signer.
func NewSigner(provider CertificateSigner) (*Signer, error) {
	return &Signer{
		provider: provider,
	}, nil
}

// Sign signs the input file and writes the result to the output file.
//
// Input and output may be the same path. The binary is held in memory
// across the rewrite so signing in place never truncates a file it is
// still reading.
func (s *Signer) Sign(input, output string) error {
	unsigned, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	pecoff, err := authenticode.Parse(bytes.NewReader(unsigned))
	if err != nil {
		return fmt.Errorf("error parsing %s: %w", input, err)
	}

	if _, err = pecoff.Sign(s.provider.Signer(), s.provider.Certificate()); err != nil {
		return fmt.Errorf("error signing %s: %w", input, err)
	}

	return os.WriteFile(output, pecoff.Bytes(), 0o600)
}
