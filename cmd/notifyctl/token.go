package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"learnhub.io/notifier/internal/api/middleware"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		name        string
		roles       []string
		permissions []string
		ttl         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a session token signed with the configured session secret",
		Long: `Mint a session token for local testing. The token is only accepted by a
server sharing SECURITY_SESSION_SECRET.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec := opts.cfg.Security
			if ttl <= 0 {
				ttl = sec.TokenTTL
			}
			token, expiresAt, err := middleware.GenerateToken(middleware.JWTConfig{
				SigningKey: []byte(sec.SessionSecret),
				Issuer:     sec.TokenIssuer,
				ExpiresIn:  ttl,
			}, args[0], name, roles, permissions)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles, e.g. student,parent")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil,
		fmt.Sprintf("permissions, e.g. %s", middleware.PermissionDispatch))
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to security.token_ttl)")
	return cmd
}
