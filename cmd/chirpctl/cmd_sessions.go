package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/service"
)

// sessionsCmd manages login sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage login sessions",
}

// sessionsPurgeCmd deletes expired login sessions
var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired login sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := service.NewAuth(db.NewRepository(database.DB), cfg.Session.TTL)
		n, err := auth.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("Expired sessions purged", zap.Int64("count", n))
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsPurgeCmd)
}
