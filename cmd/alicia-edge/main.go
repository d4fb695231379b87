package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/longregen/alicia-edge/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "alicia-edge",
		Short: "Alicia Edge - on-device voice assistant runtime",
		Long: `Alicia Edge runs on the speaker itself. It keeps the gateway session
alive, forwards wakeups and recognized text, and arbitrates what the
speaker plays.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		configCmd(),
		credsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd prints the effective configuration with secrets masked
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(cfg.Masked(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Debug server:", boolStatus(cfg.IsDebugServerEnabled()))
			fmt.Fprintln(cmd.OutOrStdout(), "Environment variables use the ALICIA_EDGE_ prefix, e.g.")
			fmt.Fprintln(cmd.OutOrStdout(), "  ALICIA_EDGE_GATEWAY_URL, ALICIA_EDGE_CREDENTIALS_PATH, ALICIA_EDGE_DEBUG_ADDR")
			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Alicia Edge %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Commit:     %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  Build Date: %s\n", buildDate)
		},
	}
}
