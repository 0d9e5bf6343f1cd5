package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/momoso/api/pkg/jwt"
)

type keysArgs struct {
	privatePath string
	publicPath  string
	force       bool
}

func newKeysCmd() *cobra.Command {
	var args keysArgs

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate the RSA key pair used to sign tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeys(cmd, args)
		},
	}

	cmd.Flags().StringVar(&args.privatePath, "private", "./keys/private.pem", "private key output path")
	cmd.Flags().StringVar(&args.publicPath, "public", "./keys/public.pem", "public key output path")
	cmd.Flags().BoolVar(&args.force, "force", false, "overwrite existing keys")
	return cmd
}

func runKeys(cmd *cobra.Command, args keysArgs) error {
	if !args.force {
		for _, p := range []string{args.privatePath, args.publicPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists, pass --force to replace it", p)
			}
		}
	}

	for _, p := range []string{args.privatePath, args.publicPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := jwt.GenerateKeyPair(args.privatePath, args.publicPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", args.privatePath, args.publicPath)
	return nil
}
