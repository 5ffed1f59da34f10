// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// Bootloader binaries on the ESP, relative to a root. Signed when present.
var bootloaderAssets = []string{
	"boot/EFI/systemd/systemd-bootx64.efi",
	"boot/EFI/BOOT/BOOTX64.EFI",
}

// espKernelGlob matches the kernel copies mkinitcpio maintains on the ESP.
// These are what the loader entries point at, so the booted image is signed
// only if they are in the set; the per-version images under the modules
// tree are re-copied there on every kernel transaction.
const espKernelGlob = "boot/vmlinuz*"

// ArtifactSet is the set of boot-chain objects requiring a signature.
//
// All paths are relative to the root the set was computed against. The set
// is always recomputed at signing time: installed kernel versions multiply
// over the system's lifetime (an upgrade may add a version before removing
// the old one), so a cached set goes stale.
type ArtifactSet struct {
	// Bootloaders are PE binaries on the ESP.
	Bootloaders []string
	// Kernels are the per-version kernel images (PE binaries).
	Kernels []string
	// Modules are the driver modules matching the driver pattern, across
	// every installed kernel version.
	Modules []string
}

// Len returns the total number of artifacts.
func (s *ArtifactSet) Len() int {
	return len(s.Bootloaders) + len(s.Kernels) + len(s.Modules)
}

// Discover computes the artifact set under the given root.
//
// Zero matches anywhere is not an error: modules may not be built yet and
// kernels may not be installed yet; the caller reports a remediation hint
// instead.
func Discover(root, driverPattern string) (*ArtifactSet, error) {
	set := &ArtifactSet{}

	for _, asset := range bootloaderAssets {
		if _, err := os.Stat(filepath.Join(root, asset)); err == nil {
			set.Bootloaders = append(set.Bootloaders, "/"+asset)
		}
	}

	espKernels, err := filepath.Glob(filepath.Join(root, espKernelGlob))
	if err != nil {
		return nil, err
	}

	for _, kernel := range espKernels {
		set.Kernels = append(set.Kernels, "/"+filepath.Join("boot", filepath.Base(kernel)))
	}

	modRoot := filepath.Join(root, constants.ModulesDir)

	entries, err := os.ReadDir(modRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}

		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		verDir := filepath.Join(modRoot, entry.Name())

		if _, err := os.Stat(filepath.Join(verDir, constants.KernelImageAsset)); err == nil {
			set.Kernels = append(set.Kernels, filepath.Join(constants.ModulesDir, entry.Name(), constants.KernelImageAsset))
		}

		modules, err := matchModules(verDir, driverPattern)
		if err != nil {
			return nil, err
		}

		for _, module := range modules {
			rel, err := filepath.Rel(root, module)
			if err != nil {
				return nil, err
			}

			set.Modules = append(set.Modules, "/"+rel)
		}
	}

	sort.Strings(set.Kernels)
	sort.Strings(set.Modules)

	return set, nil
}

func matchModules(verDir, pattern string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(verDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return matchErr
		}

		if ok {
			matches = append(matches, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return matches, nil
}
