package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xonecas/nok/internal/store"
)

func newForgetDeviceCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget-device <user-id>",
		Short: "Drop the stored Matrix device ID for a user",
		Long: `Removes the device ID nok reuses when logging in as <user-id>, so the
next login registers a new device. Uses --homeserver or the configured
homeserver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*f)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s, err := store.New()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer s.Close()

			if err := s.ForgetDevice(cfg.Matrix.Homeserver, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot device for %s on %s\n", args[0], cfg.Matrix.Homeserver)
			return nil
		},
	}
}
