// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/siderolabs/go-pointer"
	"github.com/siderolabs/go-procfs/procfs"
	"github.com/spf13/cobra"

	"github.com/basalt-os/basalt/internal/pkg/install"
)

// KernelParamDisk preseeds the target disk from the kernel command line.
const KernelParamDisk = "basalt.disk"

var installOptions = &install.Options{
	Input:  os.Stdin,
	Output: os.Stdout,
}

// installCmd provisions a disk and installs the full system onto it.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Provision a disk and install the system onto it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		defer logger.Sync() //nolint:errcheck

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		return install.NewInstaller(logger, installOptions).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	diskDefault := pointer.SafeDeref(procfs.ProcCmdline().Get(KernelParamDisk).First())

	installCmd.Flags().StringVar(&installOptions.ProfilePath, "profile", "", "path to a YAML installation profile")
	installCmd.Flags().StringVar(&installOptions.Profile.Disk, "disk", diskDefault, "the path to the disk to install to")
	installCmd.Flags().StringVar(&installOptions.Profile.Hostname, "hostname", "", "hostname of the installed system")
	installCmd.Flags().StringVar(&installOptions.Profile.Username, "username", "", "name of the administrative user to create")
	installCmd.Flags().StringVar(&installOptions.Profile.Timezone, "timezone", "", "timezone of the installed system (e.g. Europe/Berlin)")
	installCmd.Flags().BoolVar(&installOptions.Profile.SecureBoot, "secure-boot", false, "establish the secure boot trust chain")
	installCmd.Flags().BoolVar(&installOptions.NoSecureBoot, "no-secure-boot", false, "skip the trust chain even when the profile enables it")
	installCmd.Flags().BoolVar(&installOptions.Profile.DevTools, "dev-tools", false, "install development tooling")
}
