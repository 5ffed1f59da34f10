// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package secureboot establishes and maintains the SecureBoot trust chain:
// signing keys, UEFI enrollment, signed boot artifacts and the standing
// package hooks which keep the chain synchronized across upgrades.
package secureboot

// TrustState tracks how far the trust chain got.
type TrustState int

const (
	// TrustUninitialized means no signing keys exist yet.
	TrustUninitialized TrustState = iota
	// TrustKeysCreated means the signing keypair exists but is not enrolled.
	TrustKeysCreated
	// TrustEnrolled means the platform accepted the signing certificate.
	TrustEnrolled
	// TrustEnrollmentDegraded means enrollment failed; signatures are made
	// but the platform will not accept them until the operator enrolls the
	// certificate manually.
	TrustEnrollmentDegraded
)

// String implements fmt.Stringer.
func (s TrustState) String() string {
	switch s {
	case TrustUninitialized:
		return "uninitialized"
	case TrustKeysCreated:
		return "keys-created"
	case TrustEnrolled:
		return "enrolled"
	case TrustEnrollmentDegraded:
		return "enrollment-degraded"
	default:
		return "unknown"
	}
}
