package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
)

// tokenCmd mints an access token for an existing user. Identity is owned by
// an upstream provider; this exists for operators and local testing.
func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			rt, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			users := repository.NewUserRepository(rt.db)
			user, err := users.FindByID(ctx, userID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user %q not found", userID)
			}
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}

			auth := service.NewAuthService(users, repository.NewProviderRepository(rt.db), rt.logger, service.AuthConfig{
				AccessTokenSecret: rt.cfg.JWT.Secret,
				AccessTokenExpiry: ttl,
				Issuer:            rt.cfg.JWT.Issuer,
				Audience:          rt.cfg.JWT.Audience,
			})
			token, expires, err := auth.IssueToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", token, expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
