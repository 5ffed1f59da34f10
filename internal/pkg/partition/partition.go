// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partition provisions the install disk: wipe, partition, format, mount.
package partition

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Disk is the capability interface over destructive disk operations.
//
// The provisioner is written against this boundary so the exact external
// tooling stays out of the sequencing logic (and so tests can record calls).
type Disk interface {
	// UnmountTree force-unmounts anything mounted at or below the mount point.
	// Absence of a mount is not an error.
	UnmountTree(ctx context.Context, mountpoint string) error
	// Wipe erases all existing filesystem signatures on the device.
	Wipe(ctx context.Context, device string) error
	// CreateTable starts a fresh empty GPT on the device.
	CreateTable(ctx context.Context, device string) error
	// CreatePartition allocates the numbered partition. A zero size means
	// "all remaining space".
	CreatePartition(ctx context.Context, device string, index uint, size uint64, typ uuid.UUID, label string) error
	// RereadTable commits the partition table and forces the kernel to re-read it.
	RereadTable(ctx context.Context, device string) error
	// Settle waits for the partition device nodes to appear.
	Settle(ctx context.Context, nodes []string) error
	// Format creates a filesystem on the partition.
	Format(ctx context.Context, devname, fstype, label string) error
	// Mount mounts the partition, creating the target directory if needed.
	Mount(ctx context.Context, devname, target, fstype string) error
}

// ProvisioningError wraps a failure of a single provisioning step.
//
// Provisioning has no resume semantics: any failed step aborts the whole
// attempt and the caller re-confirms and re-runs from the top.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning step %q failed: %s", e.Step, e.Err)
}

// Unwrap implements error unwrapping.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// DeviceSettleTimeoutError is returned when partition device nodes never
// appear after the partition table was committed.
type DeviceSettleTimeoutError struct {
	Nodes []string
}

func (e *DeviceSettleTimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for device nodes to settle: %s", strings.Join(e.Nodes, ", "))
}
