// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/blockdev"
	"github.com/basalt-os/basalt/internal/pkg/partition"
)

// recordingDisk records every operation in call order and can fail a
// configured operation.
type recordingDisk struct {
	ops      []string
	failOp   string
	injected error
}

func (d *recordingDisk) record(op string) error {
	d.ops = append(d.ops, op)

	if op == d.failOp {
		return d.injected
	}

	return nil
}

func (d *recordingDisk) UnmountTree(_ context.Context, mountpoint string) error {
	return d.record("unmount " + mountpoint)
}

func (d *recordingDisk) Wipe(_ context.Context, device string) error {
	return d.record("wipe " + device)
}

func (d *recordingDisk) CreateTable(_ context.Context, device string) error {
	return d.record("table " + device)
}

func (d *recordingDisk) CreatePartition(_ context.Context, device string, index uint, size uint64, _ uuid.UUID, label string) error {
	return d.record(fmt.Sprintf("partition %s %d %d %s", device, index, size, label))
}

func (d *recordingDisk) RereadTable(_ context.Context, device string) error {
	return d.record("reread " + device)
}

func (d *recordingDisk) Settle(_ context.Context, nodes []string) error {
	return d.record(fmt.Sprintf("settle %v", nodes))
}

func (d *recordingDisk) Format(_ context.Context, devname, fstype, label string) error {
	return d.record(fmt.Sprintf("format %s %s %s", devname, fstype, label))
}

func (d *recordingDisk) Mount(_ context.Context, devname, target, fstype string) error {
	return d.record(fmt.Sprintf("mount %s %s %s", devname, target, fstype))
}

func testPlan(t *testing.T) *blockdev.PartitionPlan {
	t.Helper()

	return &blockdev.PartitionPlan{
		Device:             "/dev/testblock0",
		Boot:               "/dev/testblock0p1",
		Root:               "/dev/testblock0p2",
		BootFilesystemType: blockdev.FilesystemTypeVFAT,
		RootFilesystemType: blockdev.FilesystemTypeExt4,
	}
}

func expectedOps() []string {
	return []string{
		"unmount /mnt/target",
		"wipe /dev/testblock0",
		"table /dev/testblock0",
		"partition /dev/testblock0 1 1073741824 EFI",
		"partition /dev/testblock0 2 0 ROOT",
		"reread /dev/testblock0",
		"settle [/dev/testblock0p1 /dev/testblock0p2]",
		"format /dev/testblock0p1 vfat EFI",
		"format /dev/testblock0p2 ext4 ROOT",
		"mount /dev/testblock0p2 /mnt/target ext4",
		"mount /dev/testblock0p1 /mnt/target/boot vfat",
	}
}

func TestProvisionOrder(t *testing.T) {
	t.Parallel()

	disk := &recordingDisk{}

	p := partition.NewProvisioner(disk, nil)

	require.NoError(t, p.Provision(context.Background(), testPlan(t), "/mnt/target"))

	assert.Equal(t, expectedOps(), disk.ops)
}

func TestProvisionAbortsOnFailure(t *testing.T) {
	t.Parallel()

	all := expectedOps()

	for i, failOp := range all {
		t.Run(failOp, func(t *testing.T) {
			t.Parallel()

			injected := errors.New("injected failure")
			disk := &recordingDisk{failOp: failOp, injected: injected}

			p := partition.NewProvisioner(disk, nil)

			err := p.Provision(context.Background(), testPlan(t), "/mnt/target")
			require.Error(t, err)
			require.ErrorIs(t, err, injected)

			var provErr *partition.ProvisioningError

			require.ErrorAs(t, err, &provErr)

			// nothing past the failed step runs, nothing is repeated
			assert.Equal(t, all[:i+1], disk.ops)
		})
	}
}
