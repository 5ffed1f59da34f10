// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/siderolabs/go-blockdevice/v2/block"
	"github.com/siderolabs/go-blockdevice/v2/partitioning/gpt"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/siderolabs/go-retry/retry"
	"golang.org/x/sys/unix"

	"github.com/basalt-os/basalt/internal/pkg/blockdev"
	"github.com/basalt-os/basalt/internal/pkg/mount"
)

const settleTimeout = 30 * time.Second

// SystemDisk implements Disk against the real block layer.
type SystemDisk struct {
	printf func(string, ...any)

	bd *block.Device
	pt *gpt.Table
}

// Interface check.
var _ Disk = (*SystemDisk)(nil)

// NewSystemDisk creates a Disk implementation operating on real devices.
func NewSystemDisk(printf func(string, ...any)) *SystemDisk {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	return &SystemDisk{
		printf: printf,
	}
}

// UnmountTree implements Disk.
func (d *SystemDisk) UnmountTree(_ context.Context, mountpoint string) error {
	return mount.UnmountTree(d.printf, mountpoint)
}

// Wipe implements Disk.
//
// FastWipe destroys all filesystem signatures, the partition table and its
// backup copy.
func (d *SystemDisk) Wipe(_ context.Context, device string) error {
	bd, err := block.NewFromPath(device, block.OpenForWrite())
	if err != nil {
		return fmt.Errorf("failed to open blockdevice %s: %w", device, err)
	}

	defer bd.Close() //nolint:errcheck

	if err = bd.Lock(true); err != nil {
		return fmt.Errorf("failed to lock blockdevice %s: %w", device, err)
	}

	defer bd.Unlock() //nolint:errcheck

	return bd.FastWipe()
}

// CreateTable implements Disk.
//
// The new table is kept in memory; RereadTable commits it.
func (d *SystemDisk) CreateTable(_ context.Context, device string) error {
	bd, err := block.NewFromPath(device, block.OpenForWrite())
	if err != nil {
		return fmt.Errorf("failed to open blockdevice %s: %w", device, err)
	}

	if err = bd.Lock(true); err != nil {
		bd.Close() //nolint:errcheck

		return fmt.Errorf("failed to lock blockdevice %s: %w", device, err)
	}

	gptdev, err := gpt.DeviceFromBlockDevice(bd)
	if err != nil {
		bd.Unlock() //nolint:errcheck
		bd.Close()  //nolint:errcheck

		return fmt.Errorf("error getting GPT device: %w", err)
	}

	pt, err := gpt.New(gptdev)
	if err != nil {
		bd.Unlock() //nolint:errcheck
		bd.Close()  //nolint:errcheck

		return fmt.Errorf("failed to initialize GPT: %w", err)
	}

	d.bd = bd
	d.pt = pt

	return nil
}

// CreatePartition implements Disk.
func (d *SystemDisk) CreatePartition(_ context.Context, _ string, _ uint, size uint64, typ uuid.UUID, label string) error {
	if d.pt == nil {
		return errors.New("partition table is not initialized")
	}

	if size == 0 {
		size = d.pt.LargestContiguousAllocatable()
	}

	if _, _, err := d.pt.AllocatePartition(size, label, typ); err != nil {
		return fmt.Errorf("failed to allocate partition %s: %w", label, err)
	}

	d.printf("created %s (%s) size %s", label, typ, humanize.Bytes(size))

	return nil
}

// RereadTable implements Disk.
func (d *SystemDisk) RereadTable(_ context.Context, device string) error {
	if d.pt == nil || d.bd == nil {
		return errors.New("partition table is not initialized")
	}

	defer func() {
		d.bd.Unlock() //nolint:errcheck
		d.bd.Close()  //nolint:errcheck

		d.bd = nil
		d.pt = nil
	}()

	if err := d.pt.Write(); err != nil {
		return fmt.Errorf("failed to write GPT: %w", err)
	}

	// BLKRRPART forces the kernel to pick up the new partitions.
	if _, _, ret := unix.Syscall(unix.SYS_IOCTL, d.bd.File().Fd(), unix.BLKRRPART, 0); ret != 0 && ret != unix.EBUSY {
		return fmt.Errorf("re-read partition table on %s: %w", device, ret)
	}

	return nil
}

// Settle implements Disk.
func (d *SystemDisk) Settle(ctx context.Context, nodes []string) error {
	err := retry.Constant(settleTimeout, retry.WithUnits(100*time.Millisecond)).RetryWithContext(ctx, func(context.Context) error {
		for _, node := range nodes {
			if _, err := os.Stat(node); err != nil {
				if os.IsNotExist(err) {
					return retry.ExpectedError(err)
				}

				return err
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &DeviceSettleTimeoutError{Nodes: nodes}
		}

		return err
	}

	return nil
}

// Format implements Disk.
func (d *SystemDisk) Format(ctx context.Context, devname, fstype, label string) error {
	d.printf("formatting the partition %q as %q with label %q", devname, fstype, label)

	switch fstype {
	case blockdev.FilesystemTypeVFAT:
		_, err := cmd.RunContext(ctx, "mkfs.vfat", "-F", "32", "-n", label, devname)

		return err
	case blockdev.FilesystemTypeExt4:
		_, err := cmd.RunContext(ctx, "mkfs.ext4", "-q", "-F", "-L", label, devname)

		return err
	default:
		return fmt.Errorf("unsupported filesystem type: %q", fstype)
	}
}

// Mount implements Disk.
func (d *SystemDisk) Mount(_ context.Context, devname, target, fstype string) error {
	return mount.NewPoint(devname, target, fstype).Mount(d.printf)
}
