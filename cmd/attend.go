package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/pkg/attendance"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// AttendCommandDeps holds the dependencies for the attend and status commands.
type AttendCommandDeps struct {
	LoadConfig func() (*config.Config, error)
	NewApp     func(context.Context, *config.Config, AppOptions) (*App, error)
	OpenStore  func(context.Context, *config.Config, logging.Logger) (meetings.Store, error)
}

// DefaultAttendDeps returns the default dependencies for production use.
func DefaultAttendDeps(g *Globals) *AttendCommandDeps {
	return &AttendCommandDeps{
		LoadConfig: g.LoadConfig,
		NewApp:     NewApp,
		OpenStore:  OpenStore,
	}
}

// NewAttendCommand creates the attend command.
func NewAttendCommand(deps *AttendCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "attend <meeting-id>",
		Short: "Attend a scheduled meeting now",
		Long: `Join a scheduled meeting immediately instead of waiting for the join window.

The meeting must still be scheduled. The command stays in the foreground until
the meeting's scheduled end (or, when started after that, for the meeting's full
duration), then transcribes the recording and writes the notes.

Press Ctrl-C to stop recording early; what was captured so far is still
transcribed and saved.`,
		Example: `  notetaker attend 0b7d6c1e-5f0a-4d7e-9a51-1f3c2a9e8b40`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runAttend(ctx, cmd.OutOrStdout(), deps, args[0])
		},
	}
}

func runAttend(ctx context.Context, out io.Writer, deps *AttendCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	app, err := deps.NewApp(ctx, cfg, AppOptions{Capture: true})
	if err != nil {
		return fmt.Errorf("starting notetaker: %w", err)
	}
	defer app.Close()
	orch := app.Orchestrator

	if err := orch.TriggerAttendance(ctx, meetingID); err != nil {
		if errors.Is(err, nterrors.ErrInvalidState) {
			return fmt.Errorf("meeting %s is not scheduled: %w", meetingID, err)
		}
		return fmt.Errorf("attending meeting: %w", err)
	}
	for _, s := range orch.Sessions() {
		if s.MeetingID == meetingID {
			fmt.Fprintf(out, "Attending %s until %s\n", meetingID, s.Deadline.Local().Format(time.Kitchen))
		}
	}

	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Fprintln(out, "Stopping early, saving what was recorded...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Scheduler.ShutdownTimeout)
		defer cancel()
		if err := orch.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping attendance: %w", err)
		}
	}

	st, err := attendance.LookupStatus(context.WithoutCancel(ctx), app.Store, meetingID)
	if err != nil {
		return err
	}
	if err := printStatus(out, cfg.OutputFormat, st); err != nil {
		return err
	}
	if st.Status == meetings.StatusFailed {
		return fmt.Errorf("attendance failed: %s", st.FailureReason)
	}
	return nil
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *AttendCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status <meeting-id>",
		Short: "Show a meeting's transcription status",
		Long: `Show where a meeting is in the attendance pipeline: its status, whether a
transcript was stored, and whether notes exist.`,
		Example: `  notetaker status 0b7d6c1e-5f0a-4d7e-9a51-1f3c2a9e8b40
  notetaker status 0b7d6c1e-5f0a-4d7e-9a51-1f3c2a9e8b40 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), deps, args[0])
		},
	}
}

func runStatus(ctx context.Context, out io.Writer, deps *AttendCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := NewLogger(cfg)
	store, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := attendance.LookupStatus(ctx, store, meetingID)
	if err != nil {
		if errors.Is(err, nterrors.ErrNotFound) {
			return fmt.Errorf("meeting %s not found", meetingID)
		}
		return err
	}
	return printStatus(out, cfg.OutputFormat, st)
}

func printStatus(out io.Writer, format config.OutputFormat, st *attendance.TranscriptionStatus) error {
	return printOutput(out, format, st, func(w io.Writer) error {
		fmt.Fprintf(w, "Meeting:     %s\n", st.MeetingID)
		fmt.Fprintf(w, "Title:       %s\n", st.Title)
		fmt.Fprintf(w, "Status:      %s\n", st.Status)
		fmt.Fprintf(w, "Transcript:  %s\n", yesNo(st.HasTranscript))
		fmt.Fprintf(w, "Notes:       %s (%d)\n", yesNo(st.HasNotes), st.NotesCount)
		if st.Attending {
			fmt.Fprintln(w, "Attending:   yes")
		}
		if st.FailureReason != "" {
			fmt.Fprintf(w, "Failure:     %s\n", st.FailureReason)
		}
		if st.Hint != "" {
			fmt.Fprintf(w, "Hint:        %s\n", st.Hint)
		}
		return nil
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
