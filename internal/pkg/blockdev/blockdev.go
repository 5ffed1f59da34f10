// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockdev resolves raw install disks into partition device paths.
package blockdev

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Filesystem types used by the partition plan.
const (
	// FilesystemTypeVFAT is the boot partition filesystem.
	FilesystemTypeVFAT = "vfat"
	// FilesystemTypeExt4 is the root partition filesystem.
	FilesystemTypeExt4 = "ext4"
)

// Partition indexes on the install disk.
const (
	// BootPartitionIndex is the GPT index of the ESP.
	BootPartitionIndex = 1
	// RootPartitionIndex is the GPT index of the root partition.
	RootPartitionIndex = 2
)

// PartitionPlan maps the boot and root roles of an install disk to concrete
// partition device paths.
type PartitionPlan struct {
	// Device is the whole-disk device path.
	Device string
	// Boot is the ESP device path.
	Boot string
	// Root is the root partition device path.
	Root string
	// BootFilesystemType is the filesystem the ESP is formatted with.
	BootFilesystemType string
	// RootFilesystemType is the filesystem the root partition is formatted with.
	RootFilesystemType string
}

// InvalidDeviceError is returned when the install target is not a block
// special device.
type InvalidDeviceError struct {
	Device string
	Cause  error
}

func (e *InvalidDeviceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s is not a block device: %s", e.Device, e.Cause)
	}

	return fmt.Sprintf("%s is not a block device", e.Device)
}

// Unwrap implements error unwrapping.
func (e *InvalidDeviceError) Unwrap() error {
	return e.Cause
}

// PartitionDevName returns the device path of the numbered partition of the device.
//
// Devices whose canonical name ends in a digit (nvme0n1, mmcblk0, loop0) take a 'p'
// separator before the partition index to keep the device index and the partition
// index apart; all others take the bare index.
func PartitionDevName(device string, index uint) string {
	if len(device) > 0 && device[len(device)-1] >= '0' && device[len(device)-1] <= '9' {
		return fmt.Sprintf("%sp%d", device, index)
	}

	return fmt.Sprintf("%s%d", device, index)
}

// Resolve builds the partition plan for the install disk.
//
// The device must exist and be block special.
func Resolve(device string) (*PartitionPlan, error) {
	var st unix.Stat_t

	if err := unix.Stat(device, &st); err != nil {
		return nil, &InvalidDeviceError{Device: device, Cause: err}
	}

	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return nil, &InvalidDeviceError{Device: device}
	}

	return &PartitionPlan{
		Device:             device,
		Boot:               PartitionDevName(device, BootPartitionIndex),
		Root:               PartitionDevName(device, RootPartitionIndex),
		BootFilesystemType: FilesystemTypeVFAT,
		RootFilesystemType: FilesystemTypeExt4,
	}, nil
}
