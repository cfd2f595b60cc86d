package meetings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/notetaker/pkg/db"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates a store over an existing pool. The schema is applied
// separately with "notetaker db migrate".
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "postgres_store")),
	}
}

// PoolStats reports connection pool statistics for metrics.
func (s *PostgresStore) PoolStats() db.StatsFunc {
	return db.PGXStats(s.pool)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// checkID maps ids that cannot be uuids to ErrNotFound rather than a postgres syntax error.
func checkID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, nterrors.ErrNotFound)
	}
	return nil
}

func nullableUUID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateMeeting implements Store.
func (s *PostgresStore) CreateMeeting(ctx context.Context, m *Meeting) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", nterrors.ErrValidation, err)
	}
	if m.DurationMinutes == 0 {
		m.DurationMinutes = DefaultDurationMinutes
	}
	if m.Status == "" {
		m.Status = StatusScheduled
	}

	query := `
		INSERT INTO meetings (id, title, join_url, scheduled_at, duration_minutes, status,
			transcript, recording_path, user_id, reminder_sent, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		m.ID, m.Title, m.JoinURL, m.ScheduledAt, m.DurationMinutes, string(m.Status),
		m.Transcript, m.RecordingPath, nullableUUID(m.UserID), m.ReminderSent, m.FailureReason,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("meeting %s: %w", m.ID, nterrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	s.logger.Debug("Meeting created", logging.Meeting(m.ID), logging.F("scheduled_at", m.ScheduledAt))
	return nil
}

const pgMeetingColumns = `id::text, title, join_url, scheduled_at, duration_minutes, status, transcript,
	recording_path, COALESCE(user_id::text, ''), reminder_sent, failure_reason, attend_deadline,
	created_at, updated_at`

func scanPGMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	var status string
	var deadline *time.Time
	err := row.Scan(&m.ID, &m.Title, &m.JoinURL, &m.ScheduledAt, &m.DurationMinutes, &status,
		&m.Transcript, &m.RecordingPath, &m.UserID, &m.ReminderSent, &m.FailureReason, &deadline,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deadline != nil {
		m.AttendDeadline = deadline.UTC()
	}
	m.Status = Status(status)
	m.ScheduledAt = m.ScheduledAt.UTC()
	return &m, nil
}

// GetMeeting implements Store.
func (s *PostgresStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	if err := checkID("meeting", id); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+pgMeetingColumns+` FROM meetings WHERE id = $1`, id)
	m, err := scanPGMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings implements Store. Results are ordered by scheduled time.
func (s *PostgresStore) ListMeetings(ctx context.Context, f Filter) ([]*Meeting, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, "scheduled_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "scheduled_at < "+arg(f.To))
	}
	if f.ReminderPending {
		where = append(where, "reminder_sent = FALSE")
	}

	query := `SELECT ` + pgMeetingColumns + ` FROM meetings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_at ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var out []*Meeting
	for rows.Next() {
		m, err := scanPGMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TransitionStatus implements Store.
func (s *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to Status, reason string) error {
	if err := checkID("meeting", id); err != nil {
		return err
	}
	query := `
		UPDATE meetings
		SET status = $3, failure_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	result, err := s.pool.Exec(ctx, query, id, string(from), string(to), reason)
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}
	if result.RowsAffected() == 0 {
		m, err := s.GetMeeting(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("meeting %s is %s, not %s: %w", id, m.Status, from, nterrors.ErrInvalidState)
	}

	s.logger.Debug("Meeting status changed", Fields(id, from, to)...)
	return nil
}

// SetTranscript implements Store.
func (s *PostgresStore) SetTranscript(ctx context.Context, id, transcript, recordingPath string) error {
	if err := checkID("meeting", id); err != nil {
		return err
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE meetings SET transcript = $2, recording_path = $3, updated_at = NOW() WHERE id = $1`,
		id, transcript, recordingPath)
	if err != nil {
		return fmt.Errorf("failed to set transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// SetAttendDeadline implements Store.
func (s *PostgresStore) SetAttendDeadline(ctx context.Context, id string, deadline time.Time) error {
	if err := checkID("meeting", id); err != nil {
		return err
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE meetings SET attend_deadline = $2, updated_at = NOW() WHERE id = $1`, id, deadline)
	if err != nil {
		return fmt.Errorf("failed to set attend deadline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// MarkReminderSent implements Store.
func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string) error {
	if err := checkID("meeting", id); err != nil {
		return err
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE meetings SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// CreateNote implements Store.
func (s *PostgresStore) CreateNote(ctx context.Context, n *Note) error {
	if n.ID == "" {
		n.ID = NewNoteID()
	}
	if n.GeneratedAt.IsZero() {
		n.GeneratedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal note metadata: %w", err)
	}

	query := `
		INSERT INTO notes (id, meeting_id, title, content, summary, key_points, action_items,
			metadata, quality_tier, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		n.ID, n.MeetingID, n.Title, n.Content, n.Summary, nonNil(n.KeyPoints), nonNil(n.ActionItems),
		metadata, string(n.QualityTier), n.GeneratedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("note for meeting %s: %w", n.MeetingID, nterrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create note: %w", err)
	}

	s.logger.Debug("Note created",
		logging.Meeting(n.MeetingID),
		logging.F("note_id", n.ID),
		logging.F("quality_tier", string(n.QualityTier)))
	return nil
}

// ListNotes implements Store. Notes are returned oldest first.
func (s *PostgresStore) ListNotes(ctx context.Context, meetingID string) ([]*Note, error) {
	query := `
		SELECT id::text, meeting_id::text, title, content, summary, key_points, action_items,
			metadata, quality_tier, generated_at
		FROM notes
		WHERE meeting_id = $1
		ORDER BY generated_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		var n Note
		var metadata []byte
		var tier string
		if err := rows.Scan(&n.ID, &n.MeetingID, &n.Title, &n.Content, &n.Summary,
			&n.KeyPoints, &n.ActionItems, &metadata, &tier, &n.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			n.Metadata = NoteMetadata{}
		}
		n.QualityTier = QualityTier(tier)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CountNotes implements Store.
func (s *PostgresStore) CountNotes(ctx context.Context, meetingID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE meeting_id = $1`, meetingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// CreateUser implements Store.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.Email == "" {
		return fmt.Errorf("%w: user email is required", nterrors.ErrValidation)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Email, u.Name).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, nterrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser implements Store.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	if err := checkID("user", id); err != nil {
		return nil, err
	}
	var u User
	err := s.pool.QueryRow(ctx, `SELECT id::text, email, name, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store. The pool is owned by the caller and left open.
func (s *PostgresStore) Close() error {
	return nil
}
