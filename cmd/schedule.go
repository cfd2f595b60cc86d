package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// ScheduleCommandDeps holds the dependencies for the schedule and user commands.
type ScheduleCommandDeps struct {
	LoadConfig func() (*config.Config, error)
	OpenStore  func(context.Context, *config.Config, logging.Logger) (meetings.Store, error)
	Now        func() time.Time
}

// DefaultScheduleDeps returns the default dependencies for production use.
func DefaultScheduleDeps(g *Globals) *ScheduleCommandDeps {
	return &ScheduleCommandDeps{
		LoadConfig: g.LoadConfig,
		OpenStore:  OpenStore,
		Now:        time.Now,
	}
}

type scheduleOptions struct {
	title    string
	url      string
	at       string
	duration int
	userID   string
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(deps *ScheduleCommandDeps) *cobra.Command {
	var opts scheduleOptions

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a meeting for the agent to attend",
		Long: `Create a scheduled meeting.

--at accepts:
  RFC 3339              2026-03-02T14:00:00Z
  local date and time   2026-03-02 14:00 (in reminders.timezone)
  offset from now       +15m, +2h

With --user the owner receives the reminder and the notes email.`,
		Example: `  notetaker schedule --title "Linear Algebra" --url https://meet.example.com/abc --at "2026-03-02 14:00"
  notetaker schedule --title "Standup" --url https://meet.example.com/s --at +10m --duration 15 --user <user-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), cmd.OutOrStdout(), deps, opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Meeting title (required)")
	cmd.Flags().StringVar(&opts.url, "url", "", "Join URL (required)")
	cmd.Flags().StringVar(&opts.at, "at", "", "Start time (required)")
	cmd.Flags().IntVar(&opts.duration, "duration", meetings.DefaultDurationMinutes, "Duration in minutes")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Owning user ID")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("at")
	return cmd
}

func runSchedule(ctx context.Context, out io.Writer, deps *ScheduleCommandDeps, opts scheduleOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if opts.duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", opts.duration)
	}
	loc, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		return fmt.Errorf("reminders timezone: %w", err)
	}
	at, err := parseStartTime(opts.at, deps.Now(), loc)
	if err != nil {
		return err
	}

	m := meetings.NewMeeting(strings.TrimSpace(opts.title), strings.TrimSpace(opts.url), at, opts.duration)
	m.UserID = opts.userID
	if err := m.Validate(); err != nil {
		return err
	}

	store, err := deps.OpenStore(ctx, cfg, NewLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	if m.UserID != "" {
		if _, err := store.GetUser(ctx, m.UserID); err != nil {
			if errors.Is(err, nterrors.ErrNotFound) {
				return fmt.Errorf("user %s not found", m.UserID)
			}
			return err
		}
	}
	if err := store.CreateMeeting(ctx, m); err != nil {
		return fmt.Errorf("scheduling meeting: %w", err)
	}

	return printOutput(out, cfg.OutputFormat, m, func(w io.Writer) error {
		fmt.Fprintf(w, "Scheduled %q\n", m.Title)
		fmt.Fprintf(w, "  ID:    %s\n", m.ID)
		fmt.Fprintf(w, "  Start: %s\n", m.ScheduledAt.In(loc).Format("2006-01-02 15:04 MST"))
		fmt.Fprintf(w, "  Ends:  %s\n", m.EndsAt().In(loc).Format("2006-01-02 15:04 MST"))
		return nil
	})
}

// parseStartTime accepts RFC 3339, a local "YYYY-MM-DD HH:MM" in loc, or a
// "+duration" offset from now.
func parseStartTime(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --at offset %q: %w", s, err)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use RFC 3339, \"YYYY-MM-DD HH:MM\" or +duration", s)
	}
	return t, nil
}

// NewUserCommand creates the user command group.
func NewUserCommand(deps *ScheduleCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage meeting owners",
	}
	cmd.AddCommand(newUserAddCommand(deps))
	return cmd
}

func newUserAddCommand(deps *ScheduleCommandDeps) *cobra.Command {
	var emailAddr, name string

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a user who can own meetings",
		Example: `  notetaker user add --email ada@example.com --name "Ada Lovelace"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if !strings.Contains(emailAddr, "@") {
				return fmt.Errorf("invalid email address %q", emailAddr)
			}
			store, err := deps.OpenStore(cmd.Context(), cfg, NewLogger(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			u := meetings.NewUser(emailAddr, name)
			if err := store.CreateUser(cmd.Context(), u); err != nil {
				return fmt.Errorf("adding user: %w", err)
			}
			return printOutput(cmd.OutOrStdout(), cfg.OutputFormat, u, func(w io.Writer) error {
				fmt.Fprintf(w, "Added %s <%s>\n", valueOrDefault(u.Name, "(no name)"), u.Email)
				fmt.Fprintf(w, "  ID: %s\n", u.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&emailAddr, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.MarkFlagRequired("email")
	return cmd
}
