package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/credentials"
	"github.com/otherjamesbrown/notetaker/migrations"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// DBCommandDeps holds the dependencies for the db commands.
type DBCommandDeps struct {
	LoadConfig     func() (*config.Config, error)
	ResolveSecrets func(*config.Config, logging.Logger)
}

// DefaultDBDeps returns the default dependencies for production use.
func DefaultDBDeps(g *Globals) *DBCommandDeps {
	return &DBCommandDeps{
		LoadConfig: g.LoadConfig,
		ResolveSecrets: func(cfg *config.Config, logger logging.Logger) {
			ResolveSecrets(cfg, credentials.NewResolver(), logger)
		},
	}
}

// MigrateOutput reports the migrations applied, skipped, or pending.
type MigrateOutput struct {
	Driver  string   `json:"driver" yaml:"driver"`
	Applied []string `json:"applied" yaml:"applied"`
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Pending []string `json:"pending,omitempty" yaml:"pending,omitempty"`
	DryRun  bool     `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// NewDBCommand creates the db command group.
func NewDBCommand(deps *DBCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the meeting store schema",
	}
	cmd.AddCommand(newDBMigrateCommand(deps))
	return cmd
}

func newDBMigrateCommand(deps *DBCommandDeps) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply the embedded schema migrations for the configured store driver.

The sqlite store also migrates itself when opened; postgres is only migrated
by this command. Use --dry-run to list pending migrations without applying
them.`,
		Example: `  notetaker db migrate
  notetaker db migrate --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger := NewLogger(cfg)
			deps.ResolveSecrets(cfg, logger)

			out, err := runMigrate(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), cfg.OutputFormat, out, func(w io.Writer) error {
				if out.DryRun {
					if len(out.Pending) == 0 {
						fmt.Fprintln(w, "Schema is up to date")
						return nil
					}
					fmt.Fprintf(w, "%d pending migration(s):\n", len(out.Pending))
					for _, v := range out.Pending {
						fmt.Fprintf(w, "  %s\n", v)
					}
					return nil
				}
				if len(out.Applied) == 0 {
					fmt.Fprintf(w, "Schema is up to date (%s)\n", out.Driver)
					return nil
				}
				fmt.Fprintf(w, "Applied %d migration(s) to %s:\n", len(out.Applied), out.Driver)
				for _, v := range out.Applied {
					fmt.Fprintf(w, "  %s\n", v)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}

func runMigrate(ctx context.Context, cfg *config.Config, dryRun bool) (*MigrateOutput, error) {
	out := &MigrateOutput{Driver: cfg.Store.Driver, Applied: []string{}, DryRun: dryRun}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.PostgresConfig())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close(pool)

		if dryRun {
			pending, err := db.GetPendingMigrations(ctx, pool, migrations.Postgres, "postgres")
			if err != nil {
				return nil, err
			}
			for _, m := range pending {
				out.Pending = append(out.Pending, m.Name)
			}
			return out, nil
		}
		res, err := db.RunMigrations(ctx, pool, migrations.Postgres, "postgres")
		if err != nil {
			return nil, err
		}
		out.Applied = append(out.Applied, res.Applied...)
		out.Skipped = res.Skipped
		return out, nil

	case config.DriverSQLite:
		if err := ensureParentDir(cfg.Store.SQLitePath); err != nil {
			return nil, err
		}
		conn, err := db.OpenSQLite(ctx, db.DefaultSQLiteConfig(cfg.Store.SQLitePath))
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		if dryRun {
			pending, err := db.PendingSQLiteMigrations(ctx, conn, migrations.SQLite, "sqlite")
			if err != nil {
				return nil, err
			}
			for _, m := range pending {
				out.Pending = append(out.Pending, m.Name)
			}
			return out, nil
		}
		res, err := db.RunSQLiteMigrations(ctx, conn, migrations.SQLite, "sqlite")
		if err != nil {
			return nil, err
		}
		out.Applied = append(out.Applied, res.Applied...)
		out.Skipped = res.Skipped
		return out, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
