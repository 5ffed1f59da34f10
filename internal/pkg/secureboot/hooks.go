// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// HookOperation is a package transaction type a hook fires on.
type HookOperation string

// Hook operations.
const (
	OperationInstall HookOperation = "Install"
	OperationUpgrade HookOperation = "Upgrade"
)

// Hook is a standing trigger: a persisted rule the package manager consults
// after matching transactions, outliving the provisioning process.
//
// Hook actions re-execute the signing over a freshly computed artifact set,
// so they stay correct as installed kernel versions change, and are
// idempotent so a single transaction matching several hooks is harmless.
type Hook struct {
	// Name determines the hook file name (without extension).
	Name string
	// Description is shown by the package manager while the hook runs.
	Description string
	// Operations the hook fires on.
	Operations []HookOperation
	// Targets are filesystem path patterns, relative to the filesystem root.
	Targets []string
	// Exec is the hook action command line.
	Exec string
}

// Serialize renders the hook in the package manager's declarative format.
func (h *Hook) Serialize() []byte {
	var b strings.Builder

	b.WriteString("[Trigger]\n")

	for _, op := range h.Operations {
		fmt.Fprintf(&b, "Operation = %s\n", op)
	}

	b.WriteString("Type = Path\n")

	for _, target := range h.Targets {
		fmt.Fprintf(&b, "Target = %s\n", strings.TrimPrefix(target, "/"))
	}

	b.WriteString("\n[Action]\n")
	fmt.Fprintf(&b, "Description = %s\n", h.Description)
	b.WriteString("When = PostTransaction\n")
	fmt.Fprintf(&b, "Exec = %s\n", h.Exec)

	return []byte(b.String())
}

// DriverSigningHook fires on driver package transactions and re-signs the
// matching modules across all installed kernel versions.
func DriverSigningHook(driverPattern string) *Hook {
	return &Hook{
		Name:        "zz-basalt-sign-modules",
		Description: "Signing driver modules for SecureBoot",
		Operations:  []HookOperation{OperationInstall, OperationUpgrade},
		Targets: []string{
			filepath.Join(constants.ModulesDir, "*", "**", driverPattern),
		},
		Exec: constants.BinInstallPath + " sign",
	}
}

// KernelSigningHook fires on kernel package transactions and re-signs the
// kernel images; the action recomputes the full artifact set, so modules
// rebuilt against the new kernel are covered as well.
func KernelSigningHook() *Hook {
	return &Hook{
		Name:        "zz-basalt-sign-kernel",
		Description: "Signing kernel images for SecureBoot",
		Operations:  []HookOperation{OperationInstall, OperationUpgrade},
		Targets: []string{
			filepath.Join(constants.ModulesDir, "*", constants.KernelImageAsset),
			espKernelGlob,
		},
		Exec: constants.BinInstallPath + " sign",
	}
}

// InstallHooks persists the hooks under the package manager's hook directory
// inside the target root.
func InstallHooks(root string, hooks ...*Hook) error {
	dir := filepath.Join(root, constants.PacmanHookDir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating hook directory: %w", err)
	}

	for _, hook := range hooks {
		path := filepath.Join(dir, hook.Name+".hook")

		if err := os.WriteFile(path, hook.Serialize(), 0o644); err != nil {
			return fmt.Errorf("error writing hook %s: %w", hook.Name, err)
		}
	}

	return nil
}
