// Command chirpctl administers a chirp database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/pkg/config"
	"github.com/steemit/chirp/pkg/logging"
)

var (
	cfg      *config.Config
	database *db.DB
	logger   *zap.Logger
)

// rootCmd opens the configured database before any subcommand runs
var rootCmd = &cobra.Command{
	Use:           "chirpctl",
	Short:         "Administer a chirp database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("database_url is required")
		}
		if err := logging.InitLogger(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.WithComponent("chirpctl")

		if database, err = db.New(&cfg.Database, cfg.Logging.Level); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logging.GetLogger().Sync()
		if database != nil {
			return database.Close()
		}
		return nil
	},
}

// migrateCmd creates or updates the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Migrate(); err != nil {
			return err
		}
		logger.Info("Schema migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
