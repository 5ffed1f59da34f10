// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/basalt-os/basalt/internal/pkg/blockdev"
	"github.com/basalt-os/basalt/internal/pkg/chroot"
	"github.com/basalt-os/basalt/internal/pkg/constants"
	"github.com/basalt-os/basalt/internal/pkg/environment"
	"github.com/basalt-os/basalt/internal/pkg/mount"
	"github.com/basalt-os/basalt/internal/pkg/partition"
	"github.com/basalt-os/basalt/internal/pkg/secureboot"
)

// Boundary executes scripts inside the mounted target.
type Boundary interface {
	Run(ctx context.Context, script string, args ...string) error
	RunWithStdin(ctx context.Context, script string, stdin []byte, args ...string) error
}

// Options configures an installation run.
type Options struct {
	// ProfilePath points at a YAML profile; empty means fully interactive.
	ProfilePath string

	// Profile carries fields supplied on the command line; anything left
	// empty is loaded from ProfilePath or prompted for.
	Profile Profile

	// MountPoint is where the target filesystems are assembled.
	MountPoint string

	// NoSecureBoot disables the trust-chain stage even when the loaded
	// profile asks for it.
	NoSecureBoot bool

	Input  io.Reader
	Output io.Writer
}

// InstallerOption overrides a collaborator, used by tests.
type InstallerOption func(*Installer)

// WithDisk overrides the disk implementation.
func WithDisk(disk partition.Disk) InstallerOption {
	return func(i *Installer) {
		i.disk = disk
	}
}

// WithBoundary overrides the in-target execution boundary.
func WithBoundary(boundary Boundary) InstallerOption {
	return func(i *Installer) {
		i.boundary = boundary
	}
}

// WithPreflight overrides the environment validation step.
func WithPreflight(validate func(context.Context) error) InstallerOption {
	return func(i *Installer) {
		i.validate = validate
	}
}

// WithResolver overrides target device resolution.
func WithResolver(resolve func(string) (*blockdev.PartitionPlan, error)) InstallerOption {
	return func(i *Installer) {
		i.resolve = resolve
	}
}

// WithBootstrapper overrides base system bootstrap.
func WithBootstrapper(bootstrap func(context.Context, string) error) InstallerOption {
	return func(i *Installer) {
		i.bootstrap = bootstrap
	}
}

// WithTrustOptions passes extra options to the trust-chain manager.
func WithTrustOptions(opts ...secureboot.ManagerOption) InstallerOption {
	return func(i *Installer) {
		i.trustOpts = opts
	}
}

// Installer drives the installation pipeline end to end.
type Installer struct {
	options *Options
	logger  *zap.Logger
	printf  func(string, ...any)

	prompter *Prompter
	profile  Profile

	disk      partition.Disk
	boundary  Boundary
	validate  func(context.Context) error
	resolve   func(string) (*blockdev.PartitionPlan, error)
	bootstrap func(context.Context, string) error
	trustOpts []secureboot.ManagerOption

	plan       *blockdev.PartitionPlan
	trustState secureboot.TrustState
}

// NewInstaller builds an installer over the given options.
func NewInstaller(logger *zap.Logger, options *Options, opts ...InstallerOption) *Installer {
	if options.MountPoint == "" {
		options.MountPoint = constants.TargetMountPoint
	}

	printf := func(format string, args ...any) {
		logger.Sugar().Infof(format, args...)
	}

	installer := &Installer{
		options:   options,
		logger:    logger,
		printf:    printf,
		prompter:  NewPrompter(options.Input, options.Output),
		profile:   options.Profile,
		disk:      partition.NewSystemDisk(printf),
		boundary:  chroot.NewRunner(options.MountPoint, printf),
		validate:  environment.Validate,
		resolve:   blockdev.Resolve,
		bootstrap: bootstrapTarget,
	}

	for _, o := range opts {
		o(installer)
	}

	return installer
}

// Run executes the full pipeline and prints the stage report.
func (i *Installer) Run(ctx context.Context) error {
	pipeline := NewPipeline(i.logger, i.cleanup,
		Stage{Name: "preflight", Run: i.preflight},
		Stage{Name: "configuration", Run: i.acquireProfile},
		Stage{Name: "confirmation", Run: i.confirm},
		Stage{Name: "partition", Run: i.provision},
		Stage{Name: "bootstrap", Run: i.runBootstrap},
		Stage{Name: "configure", Run: i.configure},
		Stage{Name: "trust-chain", Skip: i.skipTrustChain, Run: i.trustChain},
		Stage{Name: "applications", Skip: i.skipApplications, Run: i.applications, Optional: true},
		Stage{Name: "finalize", Run: i.finalize},
	)

	err := pipeline.Run(ctx)

	fmt.Fprintf(i.options.Output, "\nInstallation report:\n%s\n", pipeline.Summary())

	return err
}

// cleanup releases the target mount tree. It is registered with the
// pipeline which guarantees a single invocation on every exit path.
func (i *Installer) cleanup() {
	if err := mount.UnmountTree(i.printf, i.options.MountPoint); err != nil {
		i.logger.Warn("error unmounting target", zap.Error(err))
	}
}

func (i *Installer) preflight(ctx context.Context) error {
	return i.validate(ctx)
}

func (i *Installer) acquireProfile(context.Context) error {
	if i.options.ProfilePath != "" {
		loaded, err := LoadProfile(i.options.ProfilePath)
		if err != nil {
			return err
		}

		mergeProfile(&i.profile, loaded)
	}

	if err := i.prompter.Complete(&i.profile); err != nil {
		return fmt.Errorf("error reading configuration: %w", err)
	}

	i.profile.ApplyDefaults()

	if i.options.NoSecureBoot {
		i.profile.SecureBoot = false
	}

	return i.profile.Validate()
}

func (i *Installer) confirm(context.Context) error {
	ok, err := i.prompter.ConfirmWipe(i.profile.Disk)
	if err != nil {
		return err
	}

	if !ok {
		return ErrDeclined
	}

	return nil
}

func (i *Installer) provision(ctx context.Context) error {
	plan, err := i.resolve(i.profile.Disk)
	if err != nil {
		return err
	}

	i.plan = plan

	return partition.NewProvisioner(i.disk, i.printf).Provision(ctx, plan, i.options.MountPoint)
}

func (i *Installer) runBootstrap(ctx context.Context) error {
	return i.bootstrap(ctx, i.options.MountPoint)
}

func (i *Installer) configure(ctx context.Context) error {
	return configureTarget(ctx, i.boundary, &i.profile)
}

func (i *Installer) skipTrustChain() (bool, string) {
	if !i.profile.SecureBoot {
		return true, "secure boot disabled in the profile"
	}

	return false, ""
}

func (i *Installer) trustChain(ctx context.Context) error {
	manager := secureboot.NewManager(i.options.MountPoint, constants.DefaultDriverPattern, i.boundary, i.logger, i.trustOpts...)

	if err := manager.EnsureKeys(); err != nil {
		return err
	}

	if err := manager.Enroll(false); err != nil {
		return err
	}

	if _, err := manager.Sign(ctx); err != nil {
		return err
	}

	if err := manager.InstallHooks(); err != nil {
		return err
	}

	i.trustState = manager.State()

	return nil
}

func (i *Installer) skipApplications() (bool, string) {
	if !i.profile.DevTools {
		return true, "development tools not requested"
	}

	return false, ""
}

func (i *Installer) applications(ctx context.Context) error {
	return installPackages(ctx, i.boundary, devToolsPackages...)
}

func (i *Installer) finalize(context.Context) error {
	unix.Sync()

	i.logger.Info("installation finished",
		zap.String("disk", i.profile.Disk),
		zap.String("hostname", i.profile.Hostname),
		zap.Stringer("trust", i.trustState),
	)

	if i.trustState == secureboot.TrustEnrollmentDegraded {
		fmt.Fprintln(i.options.Output,
			"\nSecure boot keys were generated but not enrolled: reboot into firmware setup mode and run `basalt sign --enroll`.")
	}

	return nil
}

// mergeProfile copies fields from loaded into dst wherever dst left them unset.
func mergeProfile(dst, loaded *Profile) {
	if dst.Disk == "" {
		dst.Disk = loaded.Disk
	}

	if dst.Hostname == "" {
		dst.Hostname = loaded.Hostname
	}

	if dst.Username == "" {
		dst.Username = loaded.Username
	}

	if dst.RootPassword == "" {
		dst.RootPassword = loaded.RootPassword
	}

	if dst.UserPassword == "" {
		dst.UserPassword = loaded.UserPassword
	}

	if dst.Timezone == "" {
		dst.Timezone = loaded.Timezone
	}

	if dst.Locale == "" {
		dst.Locale = loaded.Locale
	}

	if dst.Keymap == "" {
		dst.Keymap = loaded.Keymap
	}

	dst.SecureBoot = dst.SecureBoot || loaded.SecureBoot
	dst.DevTools = dst.DevTools || loaded.DevTools
}
