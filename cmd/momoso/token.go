package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/momoso/api/pkg/jwt"
)

type tokenArgs struct {
	keyPath  string
	userID   string
	email    string
	nickname string
	issuer   string
	ttl      time.Duration
	asJSON   bool
}

// newTokenCmd signs an access token for local testing without going
// through signup
func newTokenCmd() *cobra.Command {
	var args tokenArgs

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, args)
		},
	}

	cmd.Flags().StringVar(&args.keyPath, "key", "./keys/private.pem", "path to the JWT private key")
	cmd.Flags().StringVar(&args.userID, "user", "user:dev", "user record id")
	cmd.Flags().StringVar(&args.email, "email", "dev@momoso.app", "email claim")
	cmd.Flags().StringVar(&args.nickname, "nickname", "dev", "nickname claim")
	cmd.Flags().StringVar(&args.issuer, "issuer", "momoso", "JWT issuer")
	cmd.Flags().DurationVar(&args.ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&args.asJSON, "json", false, "output as JSON")
	return cmd
}

func runToken(cmd *cobra.Command, args tokenArgs) error {
	if args.ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	svc, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: args.keyPath,
		Issuer:         args.issuer,
		AccessTTL:      args.ttl,
	})
	if err != nil {
		return fmt.Errorf("load signing key (run `momoso keys` first): %w", err)
	}

	expires := time.Now().Add(args.ttl)
	token, err := svc.Sign(jwt.Claims{
		Subject:   args.userID,
		UserID:    args.userID,
		Email:     args.email,
		Nickname:  args.nickname,
		TokenType: jwt.TypeAccess,
		ExpiresAt: expires.Unix(),
	})
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	if args.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   int(args.ttl.Seconds()),
			"user_id":      args.userID,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "User:     %s\n", args.userID)
	fmt.Fprintf(cmd.OutOrStdout(), "Expires:  %s\n\n", expires.Format(time.RFC3339))
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
