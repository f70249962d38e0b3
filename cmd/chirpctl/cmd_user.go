package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/service"
)

var (
	userName     string
	userEmail    string
	userPassword string
	userImage    string
)

// userCmd manages accounts
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

// userAddCmd registers an account
var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an account",
	Long: `Register an account that can log in to the web client.

The password is stored as a bcrypt hash and must be at least 8 characters.`,
	RunE: runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Login password")
	userAddCmd.Flags().StringVar(&userImage, "image", "", "Profile image URL")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	auth := service.NewAuth(db.NewRepository(database.DB), cfg.Session.TTL)
	user, err := auth.Register(cmd.Context(), userName, userEmail, userPassword, userImage)
	if err != nil {
		return err
	}
	logger.Info("Account created", zap.String("user", user.ID), zap.String("email", user.Email))
	fmt.Fprintln(cmd.OutOrStdout(), user.ID)
	return nil
}
