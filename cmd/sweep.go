package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
)

// SweepCommandDeps holds the dependencies for the sweep command.
type SweepCommandDeps struct {
	LoadConfig func() (*config.Config, error)
	NewApp     func(context.Context, *config.Config, AppOptions) (*App, error)
}

// DefaultSweepDeps returns the default dependencies for production use.
func DefaultSweepDeps(g *Globals) *SweepCommandDeps {
	return &SweepCommandDeps{
		LoadConfig: g.LoadConfig,
		NewApp:     NewApp,
	}
}

// SweepResult reports how many meetings each reconciliation pass closed.
type SweepResult struct {
	Stuck  *int `json:"stuck,omitempty" yaml:"stuck,omitempty"`
	Missed *int `json:"missed,omitempty" yaml:"missed,omitempty"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(deps *SweepCommandDeps) *cobra.Command {
	var stuck, missed bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile stuck and missed meetings once",
		Long: `Run the reconciliation passes that serve runs periodically.

  --stuck   meetings still in-progress past their end plus the stuck margin
            get a note (if none exists) and are marked completed
  --missed  scheduled meetings whose time has passed get a filler note and
            are marked completed

With neither flag both passes run.`,
		Example: `  notetaker sweep
  notetaker sweep --missed -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stuck && !missed {
				stuck, missed = true, true
			}
			return runSweep(cmd.Context(), cmd.OutOrStdout(), deps, stuck, missed)
		},
	}

	cmd.Flags().BoolVar(&stuck, "stuck", false, "Sweep meetings stuck in progress")
	cmd.Flags().BoolVar(&missed, "missed", false, "Sweep scheduled meetings that were never attended")
	return cmd
}

func runSweep(ctx context.Context, out io.Writer, deps *SweepCommandDeps, stuck, missed bool) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	app, err := deps.NewApp(ctx, cfg, AppOptions{})
	if err != nil {
		return fmt.Errorf("starting notetaker: %w", err)
	}
	defer app.Close()

	var (
		result SweepResult
		errs   []error
	)
	if stuck {
		n, err := app.Orchestrator.SweepStuck(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("stuck sweep: %w", err))
		}
		result.Stuck = &n
	}
	if missed {
		n, err := app.Orchestrator.SweepMissed(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("missed sweep: %w", err))
		}
		result.Missed = &n
	}

	if err := printOutput(out, cfg.OutputFormat, result, func(w io.Writer) error {
		if result.Stuck != nil {
			fmt.Fprintf(w, "Stuck meetings closed:  %d\n", *result.Stuck)
		}
		if result.Missed != nil {
			fmt.Fprintf(w, "Missed meetings closed: %d\n", *result.Missed)
		}
		return nil
	}); err != nil {
		return err
	}
	return errors.Join(errs...)
}
