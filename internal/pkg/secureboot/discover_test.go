// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/secureboot"
)

func addKernelVersion(t *testing.T, root, version string) {
	t.Helper()

	verDir := filepath.Join(root, "usr/lib/modules", version)

	require.NoError(t, os.MkdirAll(filepath.Join(verDir, "kernel/drivers/video"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(verDir, "vmlinuz"), []byte("kernel"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(verDir, "kernel/drivers/video/nvidia.ko.zst"), []byte("module"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(verDir, "kernel/drivers/video/nvidia-drm.ko.zst"), []byte("module"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(verDir, "kernel/drivers/video/other.ko.zst"), []byte("module"), 0o644))
}

func TestDiscoverEmpty(t *testing.T) {
	t.Parallel()

	set, err := secureboot.Discover(t.TempDir(), "nvidia*.ko*")
	require.NoError(t, err)

	assert.Zero(t, set.Len())
}

func TestDiscoverRecomputes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	addKernelVersion(t, root, "6.9.1-arch1-1")

	first, err := secureboot.Discover(root, "nvidia*.ko*")
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/lib/modules/6.9.1-arch1-1/vmlinuz"}, first.Kernels)
	assert.Equal(t, []string{
		"/usr/lib/modules/6.9.1-arch1-1/kernel/drivers/video/nvidia-drm.ko.zst",
		"/usr/lib/modules/6.9.1-arch1-1/kernel/drivers/video/nvidia.ko.zst",
	}, first.Modules)

	// a kernel upgrade adds a second version directory; the next discovery
	// must pick it up without re-provisioning
	addKernelVersion(t, root, "6.10.2-arch1-1")

	second, err := secureboot.Discover(root, "nvidia*.ko*")
	require.NoError(t, err)

	assert.Len(t, second.Kernels, 2)
	assert.Len(t, second.Modules, 4)
	assert.Contains(t, second.Kernels, "/usr/lib/modules/6.10.2-arch1-1/vmlinuz")
	assert.Greater(t, second.Len(), first.Len())
}

func TestDiscoverIncludesBootKernelCopy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	addKernelVersion(t, root, "6.9.1-arch1-1")

	// the loader entries boot the /boot copy maintained by mkinitcpio, so
	// it must be part of the set alongside the per-version image
	require.NoError(t, os.MkdirAll(filepath.Join(root, "boot"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "boot/vmlinuz-linux"), []byte("kernel"), 0o644))

	set, err := secureboot.Discover(root, "nvidia*.ko*")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/boot/vmlinuz-linux",
		"/usr/lib/modules/6.9.1-arch1-1/vmlinuz",
	}, set.Kernels)
}

func TestDiscoverBootloader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "boot/EFI/systemd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "boot/EFI/systemd/systemd-bootx64.efi"), []byte("pe"), 0o644))

	set, err := secureboot.Discover(root, "nvidia*.ko*")
	require.NoError(t, err)

	assert.Equal(t, []string{"/boot/EFI/systemd/systemd-bootx64.efi"}, set.Bootloaders)
}
