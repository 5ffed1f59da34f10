// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siderolabs/go-cmd/pkg/cmd"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// basePackages is installed on every system.
var basePackages = []string{
	"base",
	"linux",
	"linux-firmware",
	"linux-headers",
	"networkmanager",
	"sudo",
	"efibootmgr",
}

// devToolsPackages is installed only when the profile asks for it.
var devToolsPackages = []string{
	"base-devel",
	"git",
}

// bootstrapTarget populates the mounted target with the base system via
// pacstrap and writes the generated fstab.
func bootstrapTarget(ctx context.Context, mountpoint string) error {
	packages := append([]string(nil), basePackages...)
	packages = append(packages, constants.DriverPackage)

	args := append([]string{"-K", mountpoint}, packages...)

	if _, err := cmd.RunContext(ctx, "pacstrap", args...); err != nil {
		return fmt.Errorf("error bootstrapping base system: %w", err)
	}

	fstab, err := cmd.RunContext(ctx, "genfstab", "-U", mountpoint)
	if err != nil {
		return fmt.Errorf("error generating fstab: %w", err)
	}

	path := filepath.Join(mountpoint, "etc", "fstab")

	if err = os.WriteFile(path, []byte(fstab), 0o644); err != nil {
		return fmt.Errorf("error writing fstab: %w", err)
	}

	return nil
}
