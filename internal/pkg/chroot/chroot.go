// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chroot executes configuration payloads inside the target root.
//
// All configuration of the freshly provisioned system (locale, hostname,
// users, bootloader, services) crosses this boundary, so path semantics
// inside the payload always resolve against the target tree, never against
// the provisioning environment.
package chroot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ScriptPath is the fixed location of the payload inside the target root.
const ScriptPath = "/root/.basalt-setup"

// ExitError is returned when the payload exits with a nonzero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("target script exited with code %d", e.Code)
}

// Executor runs an executable path inside a root. Replaceable for tests.
type Executor func(ctx context.Context, root, path string, args []string, stdin []byte) error

// Runner materializes payloads inside a target root and executes them there.
type Runner struct {
	root    string
	printf  func(string, ...any)
	execute Executor
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor overrides process execution.
func WithExecutor(execute Executor) Option {
	return func(r *Runner) {
		r.execute = execute
	}
}

// NewRunner creates a runner for the given target root.
func NewRunner(root string, printf func(string, ...any), opts ...Option) *Runner {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	r := &Runner{
		root:    root,
		printf:  printf,
		execute: execChroot,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Root returns the target root path.
func (r *Runner) Root() string {
	return r.root
}

// Run writes the script into the target root, executes it there with the
// given positional arguments and removes it afterwards regardless of the
// outcome.
func (r *Runner) Run(ctx context.Context, script string, args ...string) error {
	return r.RunWithStdin(ctx, script, nil, args...)
}

// RunWithStdin is Run with data fed to the script on standard input.
//
// Used for material (passwords) which must not appear in the process
// arguments.
func (r *Runner) RunWithStdin(ctx context.Context, script string, stdin []byte, args ...string) error {
	hostPath := filepath.Join(r.root, ScriptPath)

	if err := os.MkdirAll(filepath.Dir(hostPath), 0o700); err != nil {
		return fmt.Errorf("error creating script directory: %w", err)
	}

	if err := os.WriteFile(hostPath, []byte(script), 0o700); err != nil {
		return fmt.Errorf("error writing target script: %w", err)
	}

	defer os.Remove(hostPath) //nolint:errcheck

	r.printf("running %s in %s", ScriptPath, r.root)

	return r.execute(ctx, r.root, ScriptPath, args, stdin)
}

// execChroot crosses the boundary via chroot(8), so the payload sees the
// target tree as its root filesystem.
func execChroot(ctx context.Context, root, path string, args []string, stdin []byte) error {
	c := exec.CommandContext(ctx, "chroot", append([]string{root, path}, args...)...)

	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if stdin != nil {
		c.Stdin = bytes.NewReader(stdin)
	}

	err := c.Run()

	var exitErr *exec.ExitError

	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}

	return err
}
