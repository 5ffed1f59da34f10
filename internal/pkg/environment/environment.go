// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package environment validates the provisioning host before any destructive
// action is attempted.
package environment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/foxboron/go-uefi/efi"
	"github.com/foxboron/go-uefi/efi/attributes"
	"github.com/siderolabs/go-retry/retry"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// CheckError aggregates all failed preflight checks.
type CheckError struct {
	Failures []error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("environment validation failed: %s", errors.Join(e.Failures...))
}

// Unwrap implements error unwrapping over all failures.
func (e *CheckError) Unwrap() []error {
	return e.Failures
}

// Validate runs every preflight check and reports all failures together.
func Validate(ctx context.Context) error {
	var failures []error

	if err := UEFIBooted(); err != nil {
		failures = append(failures, err)
	}

	if err := ToolsPresent(constants.RequiredTools...); err != nil {
		failures = append(failures, err)
	}

	if err := NetworkReachable(ctx); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		return &CheckError{Failures: failures}
	}

	return nil
}

// UEFIBooted verifies the host was booted in UEFI mode.
func UEFIBooted() error {
	if _, err := os.Stat(attributes.Efivars); err != nil {
		return fmt.Errorf("not booted in UEFI mode (%s is not available)", attributes.Efivars)
	}

	return nil
}

// SetupMode reports whether the firmware is in SecureBoot Setup Mode.
func SetupMode() bool {
	return efi.GetSetupMode()
}

// SecureBootEnabled reports whether SecureBoot is currently enforcing.
func SecureBootEnabled() bool {
	return efi.GetSecureBoot()
}

// ToolsPresent verifies the required external tools are on PATH.
func ToolsPresent(tools ...string) error {
	var missing []string

	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("required tools are missing: %v", missing)
	}

	return nil
}

// NetworkReachable probes the package mirror.
func NetworkReachable(ctx context.Context) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	err := retry.Constant(30*time.Second, retry.WithUnits(3*time.Second)).RetryWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, constants.MirrorProbeURL, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return retry.ExpectedError(err)
		}

		resp.Body.Close() //nolint:errcheck

		return nil
	})
	if err != nil {
		return fmt.Errorf("network is not reachable (%s): %w", constants.MirrorProbeURL, err)
	}

	return nil
}
