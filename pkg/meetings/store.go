package meetings

import (
	"context"
	"time"
)

// Filter selects meetings by status and scheduled-time range.
// Zero From or To leaves that side of the range open; From is inclusive and To exclusive.
type Filter struct {
	Status Status
	From   time.Time
	To     time.Time
	// ReminderPending limits results to meetings whose reminder has not been sent.
	ReminderPending bool
	Limit           int
}

// Store is the meeting store: the single source of truth for Meeting and Note state.
//
// Status changes go through TransitionStatus, which only succeeds when the stored
// status still equals from. Sweeps use that as their claim so that two ticks never
// act on the same meeting.
type Store interface {
	CreateMeeting(ctx context.Context, m *Meeting) error
	// GetMeeting returns errors.ErrNotFound for unknown ids.
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	ListMeetings(ctx context.Context, f Filter) ([]*Meeting, error)
	// TransitionStatus returns errors.ErrInvalidState when the current status is not from.
	TransitionStatus(ctx context.Context, id string, from, to Status, reason string) error
	SetTranscript(ctx context.Context, id, transcript, recordingPath string) error
	// SetAttendDeadline records when the live capture of an in-progress meeting ends.
	SetAttendDeadline(ctx context.Context, id string, deadline time.Time) error
	MarkReminderSent(ctx context.Context, id string) error

	CreateNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, meetingID string) ([]*Note, error)
	CountNotes(ctx context.Context, meetingID string) (int, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	Ping(ctx context.Context) error
	Close() error
}
