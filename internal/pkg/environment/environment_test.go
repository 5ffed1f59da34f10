// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package environment_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-os/basalt/internal/pkg/environment"
)

func TestToolsPresent(t *testing.T) {
	t.Parallel()

	assert.NoError(t, environment.ToolsPresent("sh"))

	err := environment.ToolsPresent("sh", "definitely-not-a-real-tool-0xbead")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-tool-0xbead")
	assert.NotContains(t, err.Error(), "\"sh\"")
}

func TestCheckErrorAggregates(t *testing.T) {
	t.Parallel()

	first := errors.New("not booted in UEFI mode")
	second := errors.New("network is not reachable")

	err := &environment.CheckError{Failures: []error{first, second}}

	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Contains(t, err.Error(), first.Error())
	assert.Contains(t, err.Error(), second.Error())
}
