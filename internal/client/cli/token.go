package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cipherdrop/internal/server/auth"
)

// newTokenCmd signs a drive token with the server's shared secret. It is a
// development helper for deployments without an identity provider.
func newTokenCmd(a *App) *cobra.Command {
	var (
		userID string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a drive token with the server secret (development helper)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SECRET_KEY")
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set SECRET_KEY")
			}
			tok, err := auth.GenerateToken(userID, []byte(secret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id the token is issued for")
	cmd.Flags().StringVar(&secret, "secret", "", "server signing secret (default $SECRET_KEY)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token validity")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
