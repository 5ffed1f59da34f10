// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/basalt-os/basalt/internal/pkg/constants"
)

// Prompter fills missing profile fields by asking the operator.
type Prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)
}

// NewPrompter builds a prompter over the given streams.
//
// Password input is read with echo disabled when the input is a terminal,
// and as plain lines otherwise.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())

		p.readPassword = func() (string, error) {
			defer fmt.Fprintln(out)

			pw, err := term.ReadPassword(fd)

			return string(pw), err
		}
	} else {
		p.readPassword = p.readLine
	}

	return p
}

// Complete prompts for every required profile field which is still empty.
func (p *Prompter) Complete(profile *Profile) error {
	var err error

	if profile.Disk == "" {
		if profile.Disk, err = p.ask("target disk (e.g. /dev/nvme0n1)"); err != nil {
			return err
		}
	}

	if profile.Hostname == "" {
		if profile.Hostname, err = p.askValidated("hostname", ValidateHostname); err != nil {
			return err
		}
	}

	if profile.Username == "" {
		if profile.Username, err = p.askValidated("username", ValidateUsername); err != nil {
			return err
		}
	}

	if profile.Timezone == "" {
		tz, err := p.askDefault("timezone", constants.DefaultTimezone)
		if err != nil {
			return err
		}

		profile.Timezone = NormalizeTimezone(tz)
	}

	if profile.RootPassword == "" {
		if profile.RootPassword, err = p.askPassword("root password"); err != nil {
			return err
		}
	}

	if profile.UserPassword == "" {
		if profile.UserPassword, err = p.askPassword(fmt.Sprintf("password for %q", profile.Username)); err != nil {
			return err
		}
	}

	return nil
}

// ConfirmWipe requires the operator to type the base name of the target
// disk to proceed. Any other input, including EOF, declines.
func (p *Prompter) ConfirmWipe(disk string) (bool, error) {
	expected := filepath.Base(disk)

	fmt.Fprintf(p.out, "\nALL DATA ON %s WILL BE DESTROYED.\n", disk)
	fmt.Fprintf(p.out, "Type %q to continue, anything else to abort: ", expected)

	answer, err := p.readLine()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}

		return false, err
	}

	return answer == expected, nil
}

func (p *Prompter) ask(prompt string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", prompt)

		answer, err := p.readLine()
		if err != nil {
			return "", err
		}

		if answer != "" {
			return answer, nil
		}
	}
}

// askValidated re-prompts until the answer passes validation; invalid input
// is never fatal here.
func (p *Prompter) askValidated(prompt string, validate func(string) error) (string, error) {
	for {
		answer, err := p.ask(prompt)
		if err != nil {
			return "", err
		}

		if err = validate(answer); err != nil {
			fmt.Fprintf(p.out, "%s\n", err)

			continue
		}

		return answer, nil
	}
}

// askDefault returns def when the operator answers with an empty line.
func (p *Prompter) askDefault(prompt, def string) (string, error) {
	fmt.Fprintf(p.out, "%s [%s]: ", prompt, def)

	answer, err := p.readLine()
	if err != nil {
		return "", err
	}

	if answer == "" {
		return def, nil
	}

	return answer, nil
}

func (p *Prompter) askPassword(prompt string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", prompt)

		first, err := p.readPassword()
		if err != nil {
			return "", err
		}

		if err = ValidatePassword(first); err != nil {
			fmt.Fprintf(p.out, "%s\n", err)

			continue
		}

		fmt.Fprintf(p.out, "repeat %s: ", prompt)

		second, err := p.readPassword()
		if err != nil {
			return "", err
		}

		if first == second {
			return first, nil
		}

		fmt.Fprintln(p.out, "passwords do not match")
	}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
