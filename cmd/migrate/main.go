// Package main is the schema migration CLI of the inbox service.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/infrastructure/migrate"
)

const defaultMigrationsPath = "./migrations"

type options struct {
	configPath     string
	databaseURL    string
	migrationsPath string
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCommand(logger *zap.Logger) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the inbox database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the service configuration")
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres URL; overrides the configuration")
	root.PersistentFlags().StringVar(&opts.migrationsPath, "path", "", "migrations directory; overrides the configuration")

	root.AddCommand(
		&cobra.Command{
			Use:   "up [N]",
			Short: "Apply all or N pending migrations",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				runner, err := opts.runner(logger)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return runner.Up()
				}
				n, err := positive(args[0])
				if err != nil {
					return err
				}
				return runner.Steps(n)
			},
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back the last or the last N migrations",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				runner, err := opts.runner(logger)
				if err != nil {
					return err
				}
				n := 1
				if len(args) == 1 {
					if n, err = positive(args[0]); err != nil {
						return err
					}
				}
				return runner.Steps(-n)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				runner, err := opts.runner(logger)
				if err != nil {
					return err
				}
				version, dirty, err := runner.Version()
				if err != nil {
					return err
				}
				if dirty {
					cmd.Printf("Current version: %d (dirty)\n", version)
					return nil
				}
				cmd.Printf("Current version: %d\n", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				runner, err := opts.runner(logger)
				if err != nil {
					return err
				}
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return runner.Force(version)
			},
		},
	)

	return root
}

// runner resolves the database URL and migrations path from flags, then the configuration.
func (o *options) runner(logger *zap.Logger) (*migrate.Runner, error) {
	databaseURL, migrationsPath := o.databaseURL, o.migrationsPath

	if databaseURL == "" || migrationsPath == "" {
		cfg, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		if databaseURL == "" {
			databaseURL = cfg.Database.GetURL()
		}
		if migrationsPath == "" {
			migrationsPath = cfg.Database.MigrationsPath
		}
	}
	if migrationsPath == "" {
		migrationsPath = defaultMigrationsPath
	}

	return migrate.NewRunner(&migrate.Config{
		DatabaseURL:    databaseURL,
		MigrationsPath: migrationsPath,
	}, logger), nil
}

func positive(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("step count must be a positive integer, got %q", arg)
	}
	return n, nil
}
