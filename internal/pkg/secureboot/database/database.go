// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package database generates the SecureBoot enrollment database.
package database

import (
	"crypto/sha256"

	"github.com/foxboron/go-uefi/efi/signature"
	"github.com/foxboron/go-uefi/efi/util"
	"github.com/foxboron/go-uefi/efivar"
	"github.com/google/uuid"
)

// Entry pairs an authenticated UEFI variable with the signature database to
// enroll into it.
type Entry struct {
	Var      efivar.Efivar
	Database *signature.SignatureDatabase
}

// Generate produces the db/KEK/PK enrollment entries for the signing
// certificate, given in DER form.
//
// The entries are ordered for enrollment: PK comes last, because writing PK
// takes the firmware out of Setup Mode, after which db/KEK updates must be
// signed by keys already in the chain.
//
// ref: https://blog.hansenpartnership.com/the-meaning-of-all-the-uefi-keys/
func Generate(enrolledCertificate []byte) ([]Entry, error) {
	// derive the signature owner GUID from the enrolled certificate
	owner := uuid.NewHash(sha256.New(), uuid.NameSpaceX500, enrolledCertificate, 4)

	efiGUID := util.StringToGUID(owner.String())

	db := signature.NewSignatureDatabase()
	if err := db.Append(signature.CERT_X509_GUID, *efiGUID, enrolledCertificate); err != nil {
		return nil, err
	}

	return []Entry{
		{Var: efivar.Db, Database: db},
		{Var: efivar.KEK, Database: db},
		{Var: efivar.PK, Database: db},
	}, nil
}
