// Package reminders emails meeting owners shortly before their meetings start.
//
// Each meeting gets at most one reminder: the reminder-sent flag is set as
// soon as a delivery attempt has been made, whether or not it succeeded.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/otherjamesbrown/notetaker/pkg/email"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/observability"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
)

// JobName is the scheduler job registered by Job.
const JobName = "reminders"

// Config sets the lookahead window. Meetings starting between
// now+LookaheadMin and now+LookaheadMax (both inclusive) are reminded.
type Config struct {
	LookaheadMin time.Duration `yaml:"lookahead_min"`
	LookaheadMax time.Duration `yaml:"lookahead_max"`
	// Location is used to format meeting times; UTC when nil.
	Location *time.Location `yaml:"-"`
}

// DefaultConfig returns the 10 to 15 minute window.
func DefaultConfig() Config {
	return Config{
		LookaheadMin: 10 * time.Minute,
		LookaheadMax: 15 * time.Minute,
	}
}

// Validate checks the window is well formed.
func (c Config) Validate() error {
	if c.LookaheadMin < 0 {
		return fmt.Errorf("reminder lookahead min must not be negative, got %s", c.LookaheadMin)
	}
	if c.LookaheadMax <= c.LookaheadMin {
		return fmt.Errorf("reminder lookahead max (%s) must be after min (%s)", c.LookaheadMax, c.LookaheadMin)
	}
	return nil
}

// Summary counts the outcome of one sweep.
type Summary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Scheduler sends reminders for meetings about to start.
type Scheduler struct {
	cfg      Config
	store    meetings.Store
	resolver meetings.ContactResolver
	sender   email.Sender
	metrics  *observability.PipelineMetrics
	clock    scheduler.Clock
	logger   logging.Logger

	mu sync.Mutex
	// attempted holds meetings whose flag could not be stored, so this
	// process still never mails them twice.
	attempted map[string]struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l.With(logging.F("component", "reminder_scheduler"))
	}
}

// WithClock sets the clock.
func WithClock(c scheduler.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithMetrics records reminder outcomes.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a reminder Scheduler.
func New(cfg Config, store meetings.Store, resolver meetings.ContactResolver, sender email.Sender, opts ...Option) *Scheduler {
	if cfg.LookaheadMax <= 0 {
		cfg = DefaultConfig()
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		sender:    sender,
		clock:     scheduler.RealClock{},
		logger:    logging.NewNopLogger(),
		attempted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Job returns the periodic reminder sweep.
func (s *Scheduler) Job(interval time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:       JobName,
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := s.SendDue(ctx)
			return err
		},
	}
}

// SendDue reminds the owners of every scheduled meeting in the lookahead
// window that has not been reminded yet. Delivery failures are logged and
// counted, never returned.
func (s *Scheduler) SendDue(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.clock.Now()
	due, err := s.store.ListMeetings(ctx, meetings.Filter{
		Status:          meetings.StatusScheduled,
		From:            now.Add(s.cfg.LookaheadMin),
		To:              now.Add(s.cfg.LookaheadMax + time.Millisecond),
		ReminderPending: true,
	})
	if err != nil {
		return sum, fmt.Errorf("list meetings needing reminders: %w", err)
	}
	if len(due) > 0 {
		s.logger.Info("Sending reminders", logging.F("count", len(due)))
	}

	var errs []error
	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		result, err := s.remind(ctx, m)
		switch result {
		case observability.ReminderSent:
			sum.Sent++
		case observability.ReminderFailed:
			sum.Failed++
		default:
			sum.Skipped++
		}
		s.metrics.RecordReminder(result)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return sum, errors.Join(errs...)
}

// remind handles one meeting and returns its outcome. The error is only set
// when the reminder flag could not be stored.
func (s *Scheduler) remind(ctx context.Context, m *meetings.Meeting) (string, error) {
	logger := s.logger.With(logging.Meeting(m.ID), logging.F("title", m.Title))
	if s.wasAttempted(m.ID) {
		return observability.ReminderSkipped, nil
	}

	contact, err := s.resolver.Resolve(ctx, m)
	if err != nil {
		logger.Warn("Could not resolve meeting owner", logging.Err(err))
		return observability.ReminderSkipped, nil
	}
	if contact == nil {
		logger.Info("No email address for meeting, reminder skipped")
		return observability.ReminderSkipped, nil
	}

	msg, err := email.ReminderMessage(email.Address{Email: contact.Email, Name: contact.Name}, m, s.cfg.Location)
	if err != nil {
		logger.Error("Could not render reminder", logging.Err(err))
		return observability.ReminderSkipped, nil
	}

	result := observability.ReminderSent
	id, sendErr := s.sender.Send(ctx, msg)
	if sendErr != nil {
		result = observability.ReminderFailed
		logger.Error("Reminder delivery failed",
			logging.F("recipient", contact.Email),
			logging.Err(sendErr))
	} else {
		logger.Info("Reminder sent",
			logging.F("recipient", contact.Email),
			logging.F("message_id", id))
	}

	s.markAttempted(m.ID)
	if err := s.store.MarkReminderSent(ctx, m.ID); err != nil {
		logger.Error("Could not record reminder", logging.Err(err))
		return result, fmt.Errorf("mark reminder sent for %s: %w", m.ID, err)
	}
	s.forget(m.ID)
	return result, nil
}

func (s *Scheduler) wasAttempted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attempted[id]
	return ok
}

func (s *Scheduler) markAttempted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted[id] = struct{}{}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempted, id)
}
