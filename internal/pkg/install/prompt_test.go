// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/install"
)

func TestConfirmWipe(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name     string
		input    string
		expected bool
	}{
		{"exact base name", "nvme0n1\n", true},
		{"full path is not enough", "/dev/nvme0n1\n", false},
		{"empty line", "\n", false},
		{"eof", "", false},
		{"anything else", "yes\n", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prompter := install.NewPrompter(strings.NewReader(tt.input), &bytes.Buffer{})

			ok, err := prompter.ConfirmWipe("/dev/nvme0n1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestCompletePromptsForMissingFields(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"/dev/sda",      // disk
		"Bad_Host!",     // hostname, rejected
		"workbench",     // hostname
		"0day",          // username, rejected
		"dev",           // username
		"Europe/Berlin", // timezone
		"longenough1",   // root password
		"longenough1",   // root password, repeated
		"short",         // user password, rejected
		"longenough2",   // user password
		"bad",           // user password repeat mismatch
		"longenough2",   // user password again
		"longenough2",   // repeated
	}, "\n") + "\n"

	output := &bytes.Buffer{}
	prompter := install.NewPrompter(strings.NewReader(input), output)

	profile := install.Profile{}
	require.NoError(t, prompter.Complete(&profile))

	assert.Equal(t, "/dev/sda", profile.Disk)
	assert.Equal(t, "workbench", profile.Hostname)
	assert.Equal(t, "dev", profile.Username)
	assert.Equal(t, "Europe/Berlin", profile.Timezone)
	assert.Equal(t, "longenough1", profile.RootPassword)
	assert.Equal(t, "longenough2", profile.UserPassword)

	assert.Contains(t, output.String(), `invalid hostname "Bad_Host!"`)
	assert.Contains(t, output.String(), `invalid username "0day"`)
	assert.Contains(t, output.String(), "at least 8 characters")
	assert.Contains(t, output.String(), "passwords do not match")
}

func TestCompleteTimezoneDefaultsAndFallsBack(t *testing.T) {
	t.Parallel()

	base := install.Profile{
		Disk:         "/dev/sda",
		Hostname:     "workbench",
		Username:     "dev",
		RootPassword: "longenough1",
		UserPassword: "longenough2",
	}

	// empty answer takes the default
	defaulted := base
	prompter := install.NewPrompter(strings.NewReader("\n"), &bytes.Buffer{})
	require.NoError(t, prompter.Complete(&defaulted))
	assert.Equal(t, "UTC", defaulted.Timezone)

	// an unknown timezone falls back instead of failing
	bogus := base
	prompter = install.NewPrompter(strings.NewReader("Mars/Olympus_Mons\n"), &bytes.Buffer{})
	require.NoError(t, prompter.Complete(&bogus))
	assert.Equal(t, "UTC", bogus.Timezone)
}

func TestCompleteSkipsFilledFields(t *testing.T) {
	t.Parallel()

	profile := install.Profile{
		Disk:         "/dev/sda",
		Hostname:     "workbench",
		Username:     "dev",
		Timezone:     "UTC",
		RootPassword: "longenough1",
		UserPassword: "longenough2",
	}

	// no input available: Complete must not need any
	prompter := install.NewPrompter(strings.NewReader(""), &bytes.Buffer{})

	require.NoError(t, prompter.Complete(&profile))
}
