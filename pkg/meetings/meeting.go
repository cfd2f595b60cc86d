// Package meetings defines the Meeting and Note domain types and the store
// contract the attendance pipeline reads and writes through.
package meetings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Meeting.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// DefaultDurationMinutes is used when a meeting is scheduled without a duration.
const DefaultDurationMinutes = 60

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown meeting status %q", s)
}

// IsTerminal reports whether no further pipeline transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether the pipeline may move a meeting from one status to another.
// Transitions only move forward; cancelled is never entered by the pipeline.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Meeting is a scheduled online class or meeting the agent may attend.
type Meeting struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	JoinURL         string    `json:"join_url" yaml:"join_url"`
	ScheduledAt     time.Time `json:"scheduled_at" yaml:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	Status          Status    `json:"status" yaml:"status"`
	Transcript      string    `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	RecordingPath   string    `json:"recording_path,omitempty" yaml:"recording_path,omitempty"`
	// UserID is empty for ownerless meetings.
	UserID        string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	ReminderSent  bool      `json:"reminder_sent" yaml:"reminder_sent"`
	FailureReason string    `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	// AttendDeadline is when the live capture is due to end. Zero until
	// attendance starts.
	AttendDeadline time.Time `json:"attend_deadline,omitzero" yaml:"attend_deadline,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewMeeting builds a scheduled meeting with a fresh id.
func NewMeeting(title, joinURL string, at time.Time, durationMinutes int) *Meeting {
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	return &Meeting{
		ID:              uuid.NewString(),
		Title:           title,
		JoinURL:         joinURL,
		ScheduledAt:     at.UTC(),
		DurationMinutes: durationMinutes,
		Status:          StatusScheduled,
	}
}

// Duration returns the meeting's duration budget.
func (m *Meeting) Duration() time.Duration {
	d := m.DurationMinutes
	if d <= 0 {
		d = DefaultDurationMinutes
	}
	return time.Duration(d) * time.Minute
}

// EndsAt returns the scheduled start plus the duration budget.
func (m *Meeting) EndsAt() time.Time {
	return m.ScheduledAt.Add(m.Duration())
}

// EffectiveEnd is the later of EndsAt and AttendDeadline. A meeting attended
// after its scheduled end is not over until its capture deadline.
func (m *Meeting) EffectiveEnd() time.Time {
	if m.AttendDeadline.After(m.EndsAt()) {
		return m.AttendDeadline
	}
	return m.EndsAt()
}

// Validate checks the fields required to schedule a meeting.
func (m *Meeting) Validate() error {
	if m.Title == "" {
		return fmt.Errorf("meeting title is required")
	}
	if m.JoinURL == "" {
		return fmt.Errorf("meeting join URL is required")
	}
	if m.ScheduledAt.IsZero() {
		return fmt.Errorf("meeting scheduled time is required")
	}
	if m.DurationMinutes < 0 {
		return fmt.Errorf("meeting duration must be positive, got %d", m.DurationMinutes)
	}
	return nil
}
