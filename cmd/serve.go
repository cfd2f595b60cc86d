package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/pkg/attendance"
	"github.com/otherjamesbrown/notetaker/pkg/buildinfo"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
)

// ServeCommandDeps holds the dependencies for the serve command.
type ServeCommandDeps struct {
	LoadConfig func() (*config.Config, error)
	NewApp     func(context.Context, *config.Config, AppOptions) (*App, error)
}

// DefaultServeDeps returns the default dependencies for production use.
func DefaultServeDeps(g *Globals) *ServeCommandDeps {
	return &ServeCommandDeps{
		LoadConfig: g.LoadConfig,
		NewApp:     NewApp,
	}
}

// NewServeCommand creates the serve command.
func NewServeCommand(deps *ServeCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the attendance, reminder and reconciliation scheduler",
		Long: `Run notetaker as a long-lived service.

Registers these periodic jobs and runs each once at startup:
  reminders      email owners of meetings starting in the lookahead window
  attend         join every scheduled meeting inside the join window
  stuck-sweep    close meetings left in-progress past their end plus margin
  missed-sweep   give past, never-attended meetings a filler note

An HTTP listener (metrics.listen_addr) serves:
  GET  /metrics                   Prometheus metrics
  GET  /version                   build information
  GET  /healthz                   store health
  GET  /meetings/{id}/status      transcription status
  POST /meetings/{id}/attend      attend a scheduled meeting now

SIGINT or SIGTERM finishes live recordings early, saves their notes, and exits.`,
		Example: `  notetaker serve
  notetaker serve --config /etc/notetaker/config.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, deps)
		},
	}
}

func runServe(ctx context.Context, deps *ServeCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	app, err := deps.NewApp(ctx, cfg, AppOptions{Capture: true})
	if err != nil {
		return fmt.Errorf("starting notetaker: %w", err)
	}
	defer app.Close()
	logger := app.Logger

	svc := scheduler.NewService(scheduler.WithLogger(logger))
	jobs := append([]scheduler.Job{app.Reminders.Job(cfg.Scheduler.ReminderInterval)},
		app.Orchestrator.Jobs(cfg.Scheduler.TickInterval)...)
	for _, job := range jobs {
		if err := svc.Register(job); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           newServeMux(app.Registry, app.Store, app.Orchestrator, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP listener started", logging.F("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	logger.Info("notetaker started",
		logging.F("version", buildinfo.Version),
		logging.F("store", cfg.Store.Driver),
		logging.F("tick_interval", cfg.Scheduler.TickInterval.String()))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP listener failed", logging.Err(err))
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Scheduler.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := svc.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping scheduler: %w", err))
	}
	if err := app.Orchestrator.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping attendance: %w", err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP listener: %w", err))
	}
	return errors.Join(errs...)
}

// attendanceAPI is the part of the orchestrator exposed over HTTP.
type attendanceAPI interface {
	TriggerAttendance(ctx context.Context, meetingID string) error
	GetTranscriptionStatus(ctx context.Context, meetingID string) (*attendance.TranscriptionStatus, error)
}

func newServeMux(gatherer prometheus.Gatherer, store db.Pinger, api attendanceAPI, started time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", buildinfo.Handler(buildinfo.ServiceName, started))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		status := db.Check(ctx, store)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("GET /meetings/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := api.GetTranscriptionStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	mux.HandleFunc("POST /meetings/{id}/attend", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := api.TriggerAttendance(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"meeting_id": id, "status": "in-progress"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, nterrors.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, nterrors.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, attendance.ErrAtCapacity), errors.Is(err, attendance.ErrShuttingDown):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
