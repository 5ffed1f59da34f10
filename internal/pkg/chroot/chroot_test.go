// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chroot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/chroot"
)

func TestRunMaterializesAndRemovesScript(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var (
		seenRoot, seenPath string
		seenArgs           []string
		seenBody           string
	)

	runner := chroot.NewRunner(root, nil, chroot.WithExecutor(
		func(_ context.Context, execRoot, path string, args []string, _ []byte) error {
			seenRoot, seenPath, seenArgs = execRoot, path, args

			body, err := os.ReadFile(filepath.Join(execRoot, path))
			require.NoError(t, err)

			seenBody = string(body)

			return nil
		}))

	require.NoError(t, runner.Run(context.Background(), "#!/bin/bash\necho configured\n", "arg1", "arg2"))

	assert.Equal(t, root, seenRoot)
	assert.Equal(t, chroot.ScriptPath, seenPath)
	assert.Equal(t, []string{"arg1", "arg2"}, seenArgs)
	assert.Equal(t, "#!/bin/bash\necho configured\n", seenBody)

	// removed after execution
	_, err := os.Stat(filepath.Join(root, chroot.ScriptPath))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRemovesScriptOnFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	exitErr := &chroot.ExitError{Code: 3}

	runner := chroot.NewRunner(root, nil, chroot.WithExecutor(
		func(context.Context, string, string, []string, []byte) error {
			return exitErr
		}))

	err := runner.Run(context.Background(), "#!/bin/bash\nexit 3\n")
	require.Error(t, err)

	var ee *chroot.ExitError

	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.Code)

	_, err = os.Stat(filepath.Join(root, chroot.ScriptPath))
	assert.True(t, os.IsNotExist(err))
}
