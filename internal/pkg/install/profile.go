// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package install implements the interactive installation pipeline.
package install

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// Profile describes the desired state of the installed system.
//
// Fields left empty are filled interactively before the pipeline reaches
// any destructive stage.
type Profile struct {
	Disk         string `yaml:"disk"`
	Hostname     string `yaml:"hostname"`
	Username     string `yaml:"username"`
	RootPassword string `yaml:"rootPassword"`
	UserPassword string `yaml:"userPassword"`
	Timezone     string `yaml:"timezone"`
	Locale       string `yaml:"locale"`
	Keymap       string `yaml:"keymap"`
	SecureBoot   bool   `yaml:"secureBoot"`
	DevTools     bool   `yaml:"devTools"`
}

var (
	hostnameRegexp = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	usernameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

// LoadProfile reads a profile from a YAML document on disk.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening profile: %w", err)
	}

	defer f.Close() //nolint:errcheck

	var profile Profile

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err = dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("error decoding profile %q: %w", path, err)
	}

	return &profile, nil
}

// ApplyDefaults fills optional fields which have safe defaults.
func (p *Profile) ApplyDefaults() {
	if p.Timezone == "" {
		p.Timezone = constants.DefaultTimezone
	}

	if p.Locale == "" {
		p.Locale = constants.DefaultLocale
	}

	if p.Keymap == "" {
		p.Keymap = constants.DefaultKeymap
	}
}

// Validate checks the profile for completeness and consistency.
func (p *Profile) Validate() error {
	if p.Disk == "" {
		return fmt.Errorf("target disk is not set")
	}

	if err := ValidateHostname(p.Hostname); err != nil {
		return err
	}

	if err := ValidateUsername(p.Username); err != nil {
		return err
	}

	if err := ValidatePassword(p.RootPassword); err != nil {
		return fmt.Errorf("root password: %w", err)
	}

	if err := ValidatePassword(p.UserPassword); err != nil {
		return fmt.Errorf("user password: %w", err)
	}

	p.Timezone = NormalizeTimezone(p.Timezone)

	return nil
}

// ValidateHostname checks the hostname against RFC 1123 label rules.
func ValidateHostname(hostname string) error {
	if !hostnameRegexp.MatchString(hostname) {
		return fmt.Errorf("invalid hostname %q", hostname)
	}

	return nil
}

// ValidateUsername checks the username against useradd's naming rules.
func ValidateUsername(username string) error {
	if !usernameRegexp.MatchString(username) {
		return fmt.Errorf("invalid username %q", username)
	}

	return nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < constants.MinPasswordLen {
		return fmt.Errorf("must be at least %d characters", constants.MinPasswordLen)
	}

	return nil
}

// NormalizeTimezone verifies the timezone against the system database,
// falling back to the default when it is unknown.
func NormalizeTimezone(tz string) string {
	if _, err := time.LoadLocation(tz); err != nil {
		return constants.DefaultTimezone
	}

	return tz
}
