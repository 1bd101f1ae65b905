package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadyard/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local testing",
		Long: `Signs a bearer token for a profile id with the configured JWT secret.
Intended for development against a local server; refused in production.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Production() {
				return fmt.Errorf("refusing to mint tokens with a production config")
			}
			token, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Sign(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Leadyard config file")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
