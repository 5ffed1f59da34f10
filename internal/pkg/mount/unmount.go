// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

func trySyncMount(target string, printer func(string, ...any)) error {
	fd, err := unix.Open(target, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", target, err)
	}
	defer unix.Close(fd) //nolint:errcheck

	if err := unix.Syncfs(fd); err != nil {
		return fmt.Errorf("SYS_SYNCFS %q: %w", target, err)
	}

	return nil
}

// SafeUnmount unmounts the target path, first without force, then with force
// if the first attempt fails. A target which is not mounted (or does not
// exist) is success.
func SafeUnmount(printer func(string, ...any), target string) error {
	if printer == nil {
		printer = discard
	}

	if err := trySyncMount(target, printer); err != nil {
		printer("sync failed: %s", err)
	}

	err := unix.Unmount(target, 0)
	if err == nil || err == unix.EINVAL || err == unix.ENOENT {
		// EINVAL: not a mount point, ENOENT: no such path.
		return nil
	}

	printer("unmounting %s with force", target)

	if err = unix.Unmount(target, unix.MNT_FORCE); err != nil && err != unix.EINVAL && err != unix.ENOENT {
		return fmt.Errorf("error unmounting %s: %w", target, err)
	}

	return nil
}

// UnmountTree unmounts everything mounted at or below root, deepest mounts
// first. Absence of any mount is success.
func UnmountTree(printer func(string, ...any), root string) error {
	if printer == nil {
		printer = discard
	}

	targets, err := mountedUnder(root)
	if err != nil {
		return err
	}

	// deepest first, so nested mounts go before their parents
	sort.Slice(targets, func(i, j int) bool {
		return strings.Count(targets[i], "/") > strings.Count(targets[j], "/")
	})

	for _, target := range targets {
		if err = SafeUnmount(printer, target); err != nil {
			return err
		}
	}

	return nil
}

func mountedUnder(root string) ([]string, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil, fmt.Errorf("error reading mounts: %w", err)
	}

	defer f.Close() //nolint:errcheck

	var targets []string

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		target := fields[1]

		if target == root || strings.HasPrefix(target, root+"/") {
			targets = append(targets, target)
		}
	}

	return targets, scanner.Err()
}
