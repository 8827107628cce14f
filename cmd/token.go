package cmd

import (
	"errors"
	"fmt"
	"time"

	"SampleDeck/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenName    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set; the API accepts requests without a token")
		}
		token, err := auth.GenerateToken([]byte(cfg.JWTSecret), tokenSubject, tokenName, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "local", "token subject")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name carried in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
