// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/blockdev"
)

func TestPartitionDevName(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		device   string
		index    uint
		expected string
	}{
		{"/dev/sda", 1, "/dev/sda1"},
		{"/dev/sda", 2, "/dev/sda2"},
		{"/dev/vda", 3, "/dev/vda3"},
		{"/dev/nvme0n1", 1, "/dev/nvme0n1p1"},
		{"/dev/nvme0n1", 2, "/dev/nvme0n1p2"},
		{"/dev/mmcblk0", 1, "/dev/mmcblk0p1"},
		{"/dev/loop3", 2, "/dev/loop3p2"},
		{"/dev/testblock0", 1, "/dev/testblock0p1"},
		{"/dev/testblock0", 2, "/dev/testblock0p2"},
		{"/dev/testblocka", 1, "/dev/testblocka1"},
		{"/dev/testblocka", 2, "/dev/testblocka2"},
	} {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, blockdev.PartitionDevName(tt.device, tt.index))
		})
	}
}

func TestResolveNotBlockDevice(t *testing.T) {
	t.Parallel()

	regular := filepath.Join(t.TempDir(), "disk")
	require.NoError(t, os.WriteFile(regular, nil, 0o600))

	for _, path := range []string{
		regular,
		"/dev/null", // character device
		filepath.Join(t.TempDir(), "missing"),
	} {
		_, err := blockdev.Resolve(path)
		require.Error(t, err)

		var invalidErr *blockdev.InvalidDeviceError

		assert.ErrorAs(t, err, &invalidErr)
	}
}
