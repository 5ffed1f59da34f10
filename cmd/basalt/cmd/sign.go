// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/basalt-os/basalt/internal/pkg/chroot"
	"github.com/basalt-os/basalt/internal/pkg/constants"
	"github.com/basalt-os/basalt/internal/pkg/secureboot"
)

var signFlags struct {
	root   string
	enroll bool
	force  bool
}

// signCmd re-signs boot artifacts with the machine signing keys.
//
// It is also the Exec target of the pacman hooks installed during
// provisioning, so it must stay safe to run on every transaction.
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign bootloaders, kernels and driver modules with the machine keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		defer logger.Sync() //nolint:errcheck

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		return runSign(ctx, logger)
	},
}

func runSign(ctx context.Context, logger *zap.Logger) error {
	printf := func(format string, args ...any) {
		logger.Sugar().Infof(format, args...)
	}

	boundary := chroot.NewRunner(signFlags.root, printf)
	manager := secureboot.NewManager(signFlags.root, constants.DefaultDriverPattern, boundary, logger)

	if err := manager.EnsureKeys(); err != nil {
		return err
	}

	if signFlags.enroll {
		if err := manager.Enroll(signFlags.force); err != nil {
			return err
		}
	}

	signed, err := manager.Sign(ctx)
	if err != nil {
		return err
	}

	logger.Info("signing complete", zap.Int("artifacts", signed), zap.Stringer("trust", manager.State()))

	return nil
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVar(&signFlags.root, "root", "/", "root of the system whose artifacts are signed")
	signCmd.Flags().BoolVar(&signFlags.enroll, "enroll", false, "enroll the machine keys into firmware before signing")
	signCmd.Flags().BoolVar(&signFlags.force, "force", false, "enroll even when the firmware is not in setup mode")
}
