package main

import (
	"fmt"
	"os"
	"time"

	"enceladus/pkg/api/auth"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		userID int64
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("ENCELADUS_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no secret: pass --secret or set ENCELADUS_JWT_SECRET")
			}
			if userID <= 0 {
				return errors.New("--user must be a positive id")
			}
			tok, err := auth.SignToken([]byte(secret), userID, time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id the token authenticates")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (default $ENCELADUS_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
