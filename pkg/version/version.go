// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package version provides version information.
package version

import "fmt"

var (
	// Name is the name of the binary.
	Name = "basalt"
	// Tag is the release tag, set at build time.
	Tag = "v0.1.0-dev"
	// SHA is the git commit, set at build time.
	SHA = "unknown"
)

// Short returns the one-line version string.
func Short() string {
	return fmt.Sprintf("%s %s (%s)", Name, Tag, SHA)
}
