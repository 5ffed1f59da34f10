// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/basalt-os/basalt/internal/pkg/constants"
	"github.com/basalt-os/basalt/internal/pkg/secureboot/database"
	"github.com/basalt-os/basalt/internal/pkg/secureboot/pesign"
)

// moduleSigningScript signs driver modules with the kernel's sign-file,
// handling the module compression the package manager ships.
const moduleSigningScript = `#!/bin/bash
set -euo pipefail

key="$1"
cert="$2"
shift 2

for mod in "$@"; do
	ver_dir="${mod%%/kernel/*}"
	sign_file="${ver_dir}/build/scripts/sign-file"

	if [ ! -x "${sign_file}" ]; then
		echo "sign-file not found for ${mod}, skipping" >&2
		continue
	fi

	case "${mod}" in
	*.zst)
		zstd -q -d --rm -f "${mod}"
		"${sign_file}" sha256 "${key}" "${cert}" "${mod%.zst}"
		zstd -q --rm -f "${mod%.zst}"
		;;
	*.xz)
		xz -d -f "${mod}"
		"${sign_file}" sha256 "${key}" "${cert}" "${mod%.xz}"
		xz -f "${mod%.xz}"
		;;
	*)
		"${sign_file}" sha256 "${key}" "${cert}" "${mod}"
		;;
	esac
done
`

// Boundary executes a script inside the target root.
type Boundary interface {
	Run(ctx context.Context, script string, args ...string) error
}

// Manager establishes the trust chain and keeps it maintainable.
type Manager struct {
	root          string
	driverPattern string

	boundary Boundary
	logger   *zap.Logger

	enroller    Enroller
	signPE      func(path string) error
	signModules func(ctx context.Context, modules []string) error

	keys  *SigningKeys
	state TrustState
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithEnroller overrides the platform enroller.
func WithEnroller(enroller Enroller) ManagerOption {
	return func(m *Manager) {
		m.enroller = enroller
	}
}

// WithPESigner overrides PE artifact signing.
func WithPESigner(signPE func(path string) error) ManagerOption {
	return func(m *Manager) {
		m.signPE = signPE
	}
}

// WithModuleSigner overrides driver module signing.
func WithModuleSigner(signModules func(ctx context.Context, modules []string) error) ManagerOption {
	return func(m *Manager) {
		m.signModules = signModules
	}
}

// NewManager creates a trust-chain manager for the given target root.
func NewManager(root, driverPattern string, boundary Boundary, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		root:          root,
		driverPattern: driverPattern,
		boundary:      boundary,
		logger:        logger,
		enroller:      FirmwareEnroller{},
		state:         TrustUninitialized,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.signPE == nil {
		m.signPE = m.signPEWithKeys
	}

	if m.signModules == nil {
		m.signModules = m.signModulesInTarget
	}

	return m
}

// State returns the current trust state.
func (m *Manager) State() TrustState {
	return m.state
}

// EnsureKeys loads the signing keypair, generating it first if absent.
//
// No trust chain is possible without keys, so any failure here is fatal to
// the caller.
func (m *Manager) EnsureKeys() error {
	keyDir := filepath.Join(m.root, constants.SigningKeyDir)

	var err error

	if SigningKeysPresent(keyDir) {
		m.keys, err = LoadSigningKeys(keyDir)
	} else {
		m.logger.Info("generating SecureBoot signing keys", zap.String("dir", keyDir))

		m.keys, err = GenerateSigningKeys(keyDir, "basalt SecureBoot")
	}

	if err != nil {
		return fmt.Errorf("error initializing signing keys: %w", err)
	}

	m.state = TrustKeysCreated

	return nil
}

// Enroll attempts to register the signing certificate with the platform
// trust store.
//
// Enrollment failure is a recorded degradation, not an error: the chain can
// still sign, and the operator enrolls manually after reboot. Only a missing
// keypair is an error.
func (m *Manager) Enroll(force bool) error {
	if m.keys == nil {
		return fmt.Errorf("signing keys are not initialized")
	}

	entries, err := database.Generate(m.keys.cert.Raw)
	if err == nil {
		err = m.enroller.Enroll(entries, m.keys, force)
	}

	if err != nil {
		m.state = TrustEnrollmentDegraded

		m.logger.Warn("SecureBoot enrollment failed; signatures will not be accepted until the certificate is enrolled manually",
			zap.Error(err),
			zap.String("remediation", "reboot into firmware setup, enable Setup Mode (clear vendor keys), then run: basalt sign --enroll"),
		)

		return nil
	}

	m.state = TrustEnrolled

	m.logger.Info("SecureBoot signing certificate enrolled")

	return nil
}

// Sign recomputes the artifact set and signs every member.
//
// Returns the number of artifacts signed. An empty set is a warning, not an
// error.
func (m *Manager) Sign(ctx context.Context) (int, error) {
	if m.keys == nil {
		return 0, fmt.Errorf("signing keys are not initialized")
	}

	set, err := Discover(m.root, m.driverPattern)
	if err != nil {
		return 0, fmt.Errorf("error discovering artifacts: %w", err)
	}

	if set.Len() == 0 {
		m.logger.Warn("no boot artifacts found to sign",
			zap.String("remediation", "install a kernel and the driver package, then run: basalt sign"),
		)

		return 0, nil
	}

	signed := 0

	for _, artifact := range append(append([]string(nil), set.Bootloaders...), set.Kernels...) {
		if err = m.signPE(artifact); err != nil {
			return signed, fmt.Errorf("error signing %s: %w", artifact, err)
		}

		m.logger.Info("signed", zap.String("artifact", artifact))

		signed++
	}

	if len(set.Modules) > 0 {
		if err = m.signModules(ctx, set.Modules); err != nil {
			return signed, fmt.Errorf("error signing driver modules: %w", err)
		}

		for _, module := range set.Modules {
			m.logger.Info("signed", zap.String("artifact", module))
		}

		signed += len(set.Modules)
	}

	return signed, nil
}

// InstallHooks persists the standing signing triggers and the binary their
// actions invoke.
//
// Failure here is fatal to the caller: a trust chain that cannot
// self-maintain is worse than aborting.
func (m *Manager) InstallHooks() error {
	if err := m.installSelf(); err != nil {
		return fmt.Errorf("error installing basalt into the target: %w", err)
	}

	return InstallHooks(m.root,
		DriverSigningHook(m.driverPattern),
		KernelSigningHook(),
	)
}

func (m *Manager) signPEWithKeys(path string) error {
	signer, err := pesign.NewSigner(m.keys)
	if err != nil {
		return err
	}

	hostPath := filepath.Join(m.root, path)

	return signer.Sign(hostPath, hostPath)
}

func (m *Manager) signModulesInTarget(ctx context.Context, modules []string) error {
	args := append([]string{
		filepath.Join(constants.SigningKeyDir, SigningKeyAsset),
		filepath.Join(constants.SigningKeyDir, SigningCertAsset),
	}, modules...)

	return m.boundary.Run(ctx, moduleSigningScript, args...)
}

// installSelf copies the running binary into the target so hook actions have
// their executable.
func (m *Manager) installSelf() error {
	self, err := os.ReadFile("/proc/self/exe")
	if err != nil {
		return err
	}

	target := filepath.Join(m.root, constants.BinInstallPath)

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	return os.WriteFile(target, self, 0o755)
}
