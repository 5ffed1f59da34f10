// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot

import (
	"errors"
	"fmt"

	"github.com/foxboron/go-uefi/efi"
	"github.com/foxboron/go-uefi/efivarfs"

	"github.com/basalt-os/basalt/internal/pkg/secureboot/database"
	"github.com/basalt-os/basalt/internal/pkg/secureboot/pesign"
)

// Enroller registers enrollment database entries with the platform trust
// store. Replaceable for tests.
type Enroller interface {
	Enroll(entries []database.Entry, signer pesign.CertificateSigner, force bool) error
}

// FirmwareEnroller writes the enrollment database into the UEFI variables.
type FirmwareEnroller struct{}

// Interface check.
var _ Enroller = (*FirmwareEnroller)(nil)

// Enroll implements Enroller.
//
// Each entry is written as a signed authenticated update; the kernel marks
// these variables immutable between writes, so the flag is cleared before
// writing. Without force, enrollment is only attempted in firmware Setup
// Mode, where the authenticated variables are writable without a
// pre-existing platform key; with force, pre-existing vendor keys are
// overwritten where the firmware allows it.
func (FirmwareEnroller) Enroll(entries []database.Entry, signer pesign.CertificateSigner, force bool) error {
	if !efi.GetSetupMode() && !force {
		return errors.New("firmware is not in Setup Mode")
	}

	efifs := efivarfs.NewFS().CheckImmutable().UnsetImmutable().Open()

	for _, entry := range entries {
		if err := efifs.WriteSignedUpdate(entry.Var, entry.Database, signer.Signer(), signer.Certificate()); err != nil {
			return fmt.Errorf("error enrolling %s: %w", entry.Var.Name, err)
		}
	}

	return nil
}
