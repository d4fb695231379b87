package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/longregen/alicia-edge/internal/adapters/credstore"
	"github.com/longregen/alicia-edge/internal/domain"
)

// credsCmd inspects the credential store
func credsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Inspect or reset the stored account credentials",
	}
	cmd.AddCommand(credsShowCmd(), credsClearCmd())
	return cmd
}

func credsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored credentials and device serial",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := credstore.New(cfg.Device.CredentialsPath)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Store: %s\n", store.Path())

			serial, err := store.Serial()
			if err != nil {
				return fmt.Errorf("failed to read serial: %w", err)
			}
			if serial == "" {
				serial = "(not generated yet)"
			}
			fmt.Fprintf(out, "  Serial:       %s\n", serial)

			creds, err := store.Load()
			switch {
			case errors.Is(err, domain.ErrNotFound):
				fmt.Fprintln(out, "  Account:      not activated")
				return nil
			case err != nil:
				return fmt.Errorf("failed to read credentials: %w", err)
			}
			fmt.Fprintf(out, "  UUID:         %s\n", creds.UUID)
			fmt.Fprintf(out, "  Access Token: %s\n", maskSecret(creds.AccessToken))
			return nil
		},
	}
}

func credsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the account so the device activates again as a guest",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := credstore.New(cfg.Device.CredentialsPath)
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared; the device serial is kept.")
			return nil
		},
	}
}
