// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package constants defines basalt constants.
package constants

const (
	// TargetMountPoint is where the root partition of the install disk is mounted
	// for the duration of the provisioning run.
	TargetMountPoint = "/mnt/basalt"

	// BootMountSubdir is the ESP mount point relative to the target root.
	BootMountSubdir = "boot"

	// EFIPartitionLabel is the label of the ESP.
	EFIPartitionLabel = "EFI"

	// RootPartitionLabel is the label of the root partition.
	RootPartitionLabel = "ROOT"

	// EFISize is the size of the ESP.
	EFISize = 1024 * 1024 * 1024

	// EFISystemPartitionType is the GPT type GUID of the ESP.
	EFISystemPartitionType = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"

	// LinuxFilesystemPartitionType is the GPT type GUID of a Linux filesystem partition.
	LinuxFilesystemPartitionType = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"

	// SigningKeyDir is the directory holding the SecureBoot signing keypair,
	// relative to the target root.
	SigningKeyDir = "/var/lib/basalt/keys"

	// PacmanHookDir is the directory the package manager reads hooks from,
	// relative to the target root.
	PacmanHookDir = "/etc/pacman.d/hooks"

	// BinInstallPath is where the basalt binary is installed inside the target
	// so that signing hooks can invoke it, relative to the target root.
	BinInstallPath = "/usr/local/bin/basalt"

	// ModulesDir is the installed-kernel-versions tree, relative to a root.
	ModulesDir = "/usr/lib/modules"

	// KernelImageAsset is the kernel image file name inside a kernel version directory.
	KernelImageAsset = "vmlinuz"

	// DefaultDriverPattern matches the out-of-tree driver modules which require
	// a signature under SecureBoot.
	DefaultDriverPattern = "nvidia*.ko*"

	// DriverPackage is the package whose transactions trigger module re-signing.
	DriverPackage = "nvidia-dkms"

	// MinPasswordLen is the minimum accepted password length.
	MinPasswordLen = 8

	// DefaultTimezone is the fallback when the operator supplies an unknown timezone.
	DefaultTimezone = "UTC"

	// DefaultLocale is the locale configured when the profile leaves it unset.
	DefaultLocale = "en_US.UTF-8 UTF-8"

	// DefaultKeymap is the console keymap configured when the profile leaves it unset.
	DefaultKeymap = "us"

	// MirrorProbeURL is used by the preflight network check.
	MirrorProbeURL = "https://archlinux.org"
)

// RequiredTools must be present on the provisioning host before any
// destructive action is attempted.
var RequiredTools = []string{
	"pacstrap",
	"genfstab",
	"chroot",
	"mkfs.vfat",
	"mkfs.ext4",
}
