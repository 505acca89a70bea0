package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/config"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auctiond",
		Short:         "Live multi-tenant player auction server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to configuration file (defaults and AUCTIOND_* env only when empty)")

	root.AddCommand(serveCmd(), hashPINCmd(), versionCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, audit writer, retention sweeper and Discord announcer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func hashPINCmd() *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "hash-pin <pin>",
		Short: "Print the stored form of an admin PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations == 0 {
				iterations = config.Defaults().Auth.PBKDF2Iterations
			}
			hash, err := auth.HashPIN(args[0], iterations)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 0, "PBKDF2 iterations (default from config defaults)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
