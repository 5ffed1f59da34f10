// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/basalt-os/basalt/internal/pkg/blockdev"
	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// Step names, in execution order.
const (
	StepUnmount       = "unmount"
	StepWipe          = "wipe"
	StepCreateTable   = "partition-table"
	StepCreateBoot    = "partition-efi"
	StepCreateRoot    = "partition-root"
	StepRereadTable   = "reread-table"
	StepSettle        = "settle"
	StepFormatBoot    = "format-efi"
	StepFormatRoot    = "format-root"
	StepMountRoot     = "mount-root"
	StepMountBoot     = "mount-efi"
)

// Provisioner drives the destructive provisioning sequence on a single disk.
type Provisioner struct {
	disk   Disk
	printf func(string, ...any)
}

// NewProvisioner creates a provisioner on top of the disk capability.
func NewProvisioner(disk Disk, printf func(string, ...any)) *Provisioner {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	return &Provisioner{
		disk:   disk,
		printf: printf,
	}
}

// Provision takes the disk from unknown state to a mounted root tree with the
// ESP mounted beneath it.
//
// Steps run in strict order, each a hard precondition for the next; the
// first failure aborts the whole attempt.
func (p *Provisioner) Provision(ctx context.Context, plan *blockdev.PartitionPlan, mountpoint string) error {
	espType := uuid.MustParse(constants.EFISystemPartitionType)
	linuxType := uuid.MustParse(constants.LinuxFilesystemPartitionType)

	bootTarget := filepath.Join(mountpoint, constants.BootMountSubdir)

	steps := []struct {
		name string
		run  func() error
	}{
		{StepUnmount, func() error { return p.disk.UnmountTree(ctx, mountpoint) }},
		{StepWipe, func() error { return p.disk.Wipe(ctx, plan.Device) }},
		{StepCreateTable, func() error { return p.disk.CreateTable(ctx, plan.Device) }},
		{StepCreateBoot, func() error {
			return p.disk.CreatePartition(ctx, plan.Device, blockdev.BootPartitionIndex, constants.EFISize, espType, constants.EFIPartitionLabel)
		}},
		{StepCreateRoot, func() error {
			return p.disk.CreatePartition(ctx, plan.Device, blockdev.RootPartitionIndex, 0, linuxType, constants.RootPartitionLabel)
		}},
		{StepRereadTable, func() error { return p.disk.RereadTable(ctx, plan.Device) }},
		{StepSettle, func() error { return p.disk.Settle(ctx, []string{plan.Boot, plan.Root}) }},
		{StepFormatBoot, func() error {
			return p.disk.Format(ctx, plan.Boot, plan.BootFilesystemType, constants.EFIPartitionLabel)
		}},
		{StepFormatRoot, func() error {
			return p.disk.Format(ctx, plan.Root, plan.RootFilesystemType, constants.RootPartitionLabel)
		}},
		{StepMountRoot, func() error { return p.disk.Mount(ctx, plan.Root, mountpoint, plan.RootFilesystemType) }},
		{StepMountBoot, func() error { return p.disk.Mount(ctx, plan.Boot, bootTarget, plan.BootFilesystemType) }},
	}

	for _, step := range steps {
		p.printf("provisioning %s: %s", plan.Device, step.name)

		if err := step.run(); err != nil {
			return &ProvisioningError{Step: step.name, Err: err}
		}
	}

	return nil
}
