package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"execdash/internal/config"
	"execdash/internal/db"
	"execdash/internal/feed"
	"execdash/internal/logger"
	"execdash/internal/store"
)

// cliActor is recorded in the audit log for writes made from the CLI.
const cliActor = "cli"

type options struct {
	databaseURL string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Operate the executive metrics store",
		Long: `dashctl reads and writes the executive metrics snapshot directly in the
database the dashboard serves from. Writes go through the same merge and
audit path as the admin editor.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database", os.Getenv("APP_DATABASE_URL"),
		"Database URL (postgres://... or sqlite://path); defaults to APP_DATABASE_URL")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log store activity to stderr")

	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newSetCmd(opts))
	cmd.AddCommand(newAdminCmd(opts))
	return cmd
}

func (o *options) logger() *logger.Logger {
	if !o.verbose {
		return logger.Nop()
	}
	log, err := logger.New("development")
	if err != nil {
		return logger.Nop()
	}
	return log
}

func (o *options) open() (*gorm.DB, error) {
	cfg := config.Load()
	cfg.DatabaseURL = o.databaseURL
	return db.Connect(cfg)
}

// openStore opens the database and builds a metrics store writing in the
// configured mode. With the Redis feed backend, CLI writes are published so
// running dashboards update; with the in-memory backend nobody else can
// hear them. The returned func releases everything.
func (o *options) openStore() (*store.Store, func(), error) {
	sqlDB, err := o.open()
	if err != nil {
		return nil, nil, err
	}
	cfg := config.Load()
	log := o.logger()

	opts := []store.Option{store.WithWriteMode(cfg.WriteMode), store.WithLogger(log)}
	cleanup := func() { closeDB(sqlDB) }
	if cfg.FeedBackend == config.FeedBackendRedis {
		bus, err := feed.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Warn("change feed unavailable; write will not be announced", "error", err)
		} else {
			opts = append(opts, store.WithPublisher(bus))
			cleanup = func() {
				_ = bus.Close()
				closeDB(sqlDB)
			}
		}
	}
	return store.New(sqlDB, opts...), cleanup, nil
}

func closeDB(sqlDB *gorm.DB) {
	if raw, err := sqlDB.DB(); err == nil {
		_ = raw.Close()
	}
}

func cliContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return store.WithActor(ctx, cliActor)
}
