package migrate

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
	registrymigrate "github.com/chirino/askbox/internal/registry/migrate"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/urfave/cli/v3"

	// Store plugins register their migrators alongside their loaders.
	_ "github.com/chirino/askbox/internal/plugin/store/mongo"
	_ "github.com/chirino/askbox/internal/plugin/store/postgres"
	_ "github.com/chirino/askbox/internal/plugin/store/sqlite"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the askbox tables, collections and indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-url",
				Sources: cli.EnvVars("ASKBOX_DB_URL"),
				Usage:   "Database connection URL",
			},
			&cli.StringFlag{
				Name:    "db-kind",
				Sources: cli.EnvVars("ASKBOX_DB_KIND"),
				Usage:   "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
				Value:   "postgres",
			},
			&cli.StringFlag{
				Name:    "db-name",
				Sources: cli.EnvVars("ASKBOX_DB_NAME"),
				Usage:   "Database name (mongo)",
				Value:   "askbox",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			cfg.DBURL = cmd.String("db-url")
			cfg.DatastoreType = cmd.String("db-kind")
			cfg.DBName = cmd.String("db-name")
			cfg.DatastoreMigrateAtStart = true
			if _, err := registrystore.Select(cfg.DatastoreType); err != nil {
				return err
			}
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...", "db", cfg.DatastoreType)
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
