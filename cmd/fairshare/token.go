package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/fairshare/internal/auth"
)

func tokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local development",
		Long: `Signs a token with JWT_SECRET the way the identity provider would, so the API
can be called without one. Pass it as "Authorization: Bearer <token>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to sign tokens")
			}
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = a.cfg.Auth.TokenTTL
			}

			token, err := auth.NewJWTManager(a.cfg.Auth.JWTSecret, ttl).Generate(args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Display name carried in the token")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default TOKEN_TTL)")

	return cmd
}
