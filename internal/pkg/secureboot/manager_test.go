// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secureboot_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/basalt-os/basalt/internal/pkg/secureboot"
	"github.com/basalt-os/basalt/internal/pkg/secureboot/database"
	"github.com/basalt-os/basalt/internal/pkg/secureboot/pesign"
)

type failingEnroller struct {
	calls int
}

func (e *failingEnroller) Enroll([]database.Entry, pesign.CertificateSigner, bool) error {
	e.calls++

	return errors.New("firmware rejected the enrollment")
}

type nopBoundary struct {
	runs int
}

func (b *nopBoundary) Run(context.Context, string, ...string) error {
	b.runs++

	return nil
}

func TestEnrollmentFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	addKernelVersion(t, root, "6.9.1-arch1-1")

	enroller := &failingEnroller{}
	boundary := &nopBoundary{}

	var signedPE []string

	m := secureboot.NewManager(root, "nvidia*.ko*", boundary, zaptest.NewLogger(t),
		secureboot.WithEnroller(enroller),
		secureboot.WithPESigner(func(path string) error {
			signedPE = append(signedPE, path)

			return nil
		}),
	)

	require.NoError(t, m.EnsureKeys())
	assert.Equal(t, secureboot.TrustKeysCreated, m.State())

	// enrollment fails, but the run continues
	require.NoError(t, m.Enroll(false))
	assert.Equal(t, 1, enroller.calls)
	assert.Equal(t, secureboot.TrustEnrollmentDegraded, m.State())

	// signing still executes
	signed, err := m.Sign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, signed) // one kernel, two modules
	assert.Equal(t, []string{"/usr/lib/modules/6.9.1-arch1-1/vmlinuz"}, signedPE)
	assert.Equal(t, 1, boundary.runs)

	// the standing triggers are still installed
	require.NoError(t, m.InstallHooks())

	assert.FileExists(t, filepath.Join(root, "etc/pacman.d/hooks/zz-basalt-sign-modules.hook"))
	assert.FileExists(t, filepath.Join(root, "etc/pacman.d/hooks/zz-basalt-sign-kernel.hook"))
	assert.FileExists(t, filepath.Join(root, "usr/local/bin/basalt"))
	assert.Equal(t, secureboot.TrustEnrollmentDegraded, m.State())
}

func TestSignEmptySetIsWarning(t *testing.T) {
	t.Parallel()

	m := secureboot.NewManager(t.TempDir(), "nvidia*.ko*", &nopBoundary{}, zaptest.NewLogger(t),
		secureboot.WithEnroller(&failingEnroller{}),
		secureboot.WithPESigner(func(string) error { return nil }),
	)

	require.NoError(t, m.EnsureKeys())

	signed, err := m.Sign(context.Background())
	require.NoError(t, err)
	assert.Zero(t, signed)
}

func TestKeysPersistAcrossManagers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m1 := secureboot.NewManager(root, "nvidia*.ko*", &nopBoundary{}, zaptest.NewLogger(t))
	require.NoError(t, m1.EnsureKeys())

	// a second manager (a hook firing later) loads the same keys
	m2 := secureboot.NewManager(root, "nvidia*.ko*", &nopBoundary{}, zaptest.NewLogger(t))
	require.NoError(t, m2.EnsureKeys())

	assert.Equal(t, secureboot.TrustKeysCreated, m2.State())
}
