package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/config"
	"github.com/ggnet/ggnetd/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply versioned SQL migrations to a PostgreSQL database",
	Long: `migrate applies the embedded SQL migration set to the configured
PostgreSQL database, the auditable alternative to the GORM AutoMigrate path
'ggnetd start' takes for SQLite and development deployments.

This command is a no-op for SQLite-backed deployments: their schema is
always reconciled via AutoMigrate on daemon startup.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	if cfg.Database.Type != store.DatabaseTypePostgres {
		fmt.Println("database type is not postgres; nothing to migrate (SQLite uses AutoMigrate on start)")
		return nil
	}

	return store.RunMigrations(cmd.Context(), &cfg.Database.Postgres)
}
