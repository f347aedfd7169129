package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/paygw/internal/config"
	"github.com/example/paygw/internal/utils"
)

var sessionTokenCmd = &cobra.Command{
	Use:   "session-token <user-uuid>",
	Short: "Issue a host session token for a user, signed with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := utils.IssueSessionToken(cfg.JWTSecret, userID, cfg.TokenExpires)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
