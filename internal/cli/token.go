package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signquiz-service/internal/auth"
	"signquiz-service/internal/config"
)

// NewTokenCmd issues a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)
			}
			token, err := auth.NewAuthenticator(cfg.Auth.Secret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTTL)")
	return cmd
}
