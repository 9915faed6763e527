package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func tokenCmd(rt *toolEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token helpers for local testing",
	}

	var userID, email, role string
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a signed access token with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, _, err := rt.config()
			if err != nil {
				return err
			}
			return mintToken(cfg.JWT, time.Now(), userID, email, role, c.OutOrStdout())
		},
	}
	mint.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	mint.Flags().StringVar(&email, "email", "", "email carried in the token")
	mint.Flags().StringVar(&role, "role", string(enums.ActorRoleCustomer), "customer or operator")
	_ = mint.MarkFlagRequired("user")

	cmd.AddCommand(mint)
	return cmd
}

func mintToken(cfg config.JWTConfig, now time.Time, userID, email, role string, out io.Writer) error {
	parsed, err := enums.ParseActorRole(role)
	if err != nil {
		return err
	}
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{
		UserID: userID,
		Email:  email,
		Role:   parsed,
	})
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
