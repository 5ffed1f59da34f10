// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"fmt"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// configureScript runs inside the target. Arguments are positional:
// hostname, username, timezone, locale.gen line, keymap. Credentials
// arrive on stdin in chpasswd format so they never appear in argv.
const configureScript = `#!/bin/bash
set -euo pipefail

hostname="$1"
username="$2"
timezone="$3"
locale="$4"
keymap="$5"

ln -sf "/usr/share/zoneinfo/${timezone}" /etc/localtime
hwclock --systohc || true

sed -i "s|^#${locale}|${locale}|" /etc/locale.gen
locale-gen
echo "LANG=${locale%% *}" > /etc/locale.conf
echo "KEYMAP=${keymap}" > /etc/vconsole.conf

echo "${hostname}" > /etc/hostname

useradd -m -G wheel "${username}"
echo "%wheel ALL=(ALL:ALL) ALL" > /etc/sudoers.d/10-wheel
chmod 0440 /etc/sudoers.d/10-wheel

chpasswd

bootctl install

mkdir -p /boot/loader/entries
cat > /boot/loader/loader.conf <<EOF
default basalt.conf
timeout 3
EOF
cat > /boot/loader/entries/basalt.conf <<EOF
title   Basalt Linux
linux   /vmlinuz-linux
initrd  /initramfs-linux.img
options root=LABEL=` + constants.RootPartitionLabel + ` rw
EOF

systemctl enable NetworkManager
`

// installPackagesScript installs additional packages inside the target.
const installPackagesScript = `#!/bin/bash
set -euo pipefail

pacman -S --noconfirm --needed "$@"
`

// configureTarget applies the profile inside the mounted target through
// the execution boundary.
func configureTarget(ctx context.Context, boundary Boundary, profile *Profile) error {
	credentials := fmt.Sprintf("root:%s\n%s:%s\n", profile.RootPassword, profile.Username, profile.UserPassword)

	err := boundary.RunWithStdin(ctx, configureScript, []byte(credentials),
		profile.Hostname, profile.Username, profile.Timezone, profile.Locale, profile.Keymap)
	if err != nil {
		return fmt.Errorf("error configuring target: %w", err)
	}

	return nil
}

// installPackages installs extra packages inside the target.
func installPackages(ctx context.Context, boundary Boundary, packages ...string) error {
	if err := boundary.Run(ctx, installPackagesScript, packages...); err != nil {
		return fmt.Errorf("error installing packages: %w", err)
	}

	return nil
}
