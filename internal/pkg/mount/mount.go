// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount provides mount and unmount operations for the target tree.
package mount

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Point is a single filesystem mount.
type Point struct {
	source string
	target string
	fstype string
}

// NewPoint creates a new mount point.
func NewPoint(source, target, fstype string) *Point {
	return &Point{
		source: source,
		target: target,
		fstype: fstype,
	}
}

// Target returns the mount target path.
func (p *Point) Target() string {
	return p.target
}

// Mount creates the target directory and mounts the source on it.
func (p *Point) Mount(printer func(string, ...any)) error {
	if printer == nil {
		printer = discard
	}

	if err := os.MkdirAll(p.target, 0o755); err != nil {
		return fmt.Errorf("error creating mount target %q: %w", p.target, err)
	}

	if err := unix.Mount(p.source, p.target, p.fstype, 0, ""); err != nil {
		return fmt.Errorf("error mounting %s on %s: %w", p.source, p.target, err)
	}

	printer("mounted %s (%s) on %s", p.source, p.fstype, p.target)

	return nil
}

// Unmount unmounts the mount point.
func (p *Point) Unmount(printer func(string, ...any)) error {
	return SafeUnmount(printer, p.target)
}

func discard(string, ...any) {}
