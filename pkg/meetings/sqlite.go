package meetings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/otherjamesbrown/notetaker/migrations"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLiteStore opens the database at path and applies the embedded schema.
func OpenSQLiteStore(ctx context.Context, path string, logger logging.Logger) (*SQLiteStore, error) {
	conn, err := db.OpenSQLite(ctx, db.DefaultSQLiteConfig(path))
	if err != nil {
		return nil, err
	}
	if _, err := db.RunSQLiteMigrations(ctx, conn, migrations.SQLite, "sqlite"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return &SQLiteStore{
		db:     conn,
		logger: logger.With(logging.F("component", "sqlite_store")),
	}, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateMeeting implements Store.
func (s *SQLiteStore) CreateMeeting(ctx context.Context, m *Meeting) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", nterrors.ErrValidation, err)
	}
	if m.DurationMinutes == 0 {
		m.DurationMinutes = DefaultDurationMinutes
	}
	if m.Status == "" {
		m.Status = StatusScheduled
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, join_url, scheduled_at, duration_minutes, status,
			transcript, recording_path, user_id, reminder_sent, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.JoinURL, toMillis(m.ScheduledAt), m.DurationMinutes, string(m.Status),
		m.Transcript, m.RecordingPath, nullableString(m.UserID), m.ReminderSent, m.FailureReason,
		toMillis(now), toMillis(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("meeting %s: %w", m.ID, nterrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

const meetingColumns = `id, title, join_url, scheduled_at, duration_minutes, status, transcript,
	recording_path, user_id, reminder_sent, failure_reason, attend_deadline, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*Meeting, error) {
	var m Meeting
	var status string
	var userID sql.NullString
	var deadline sql.NullInt64
	var scheduled, created, upd int64
	err := row.Scan(&m.ID, &m.Title, &m.JoinURL, &scheduled, &m.DurationMinutes, &status,
		&m.Transcript, &m.RecordingPath, &userID, &m.ReminderSent, &m.FailureReason, &deadline, &created, &upd)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		m.AttendDeadline = fromMillis(deadline.Int64)
	}
	m.Status = Status(status)
	m.UserID = userID.String
	m.ScheduledAt = fromMillis(scheduled)
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(upd)
	return &m, nil
}

// GetMeeting implements Store.
func (s *SQLiteStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings implements Store. Results are ordered by scheduled time.
func (s *SQLiteStore) ListMeetings(ctx context.Context, f Filter) ([]*Meeting, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "scheduled_at >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "scheduled_at < ?")
		args = append(args, toMillis(f.To))
	}
	if f.ReminderPending {
		where = append(where, "reminder_sent = 0")
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_at ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var out []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TransitionStatus implements Store.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, from, to Status, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET status = ?, failure_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), reason, toMillis(time.Now()), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}
	if n == 0 {
		return s.transitionMiss(ctx, id, from)
	}

	s.logger.Debug("Meeting status changed", Fields(id, from, to)...)
	return nil
}

func (s *SQLiteStore) transitionMiss(ctx context.Context, id string, from Status) error {
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("meeting %s is %s, not %s: %w", id, m.Status, from, nterrors.ErrInvalidState)
}

// SetTranscript implements Store.
func (s *SQLiteStore) SetTranscript(ctx context.Context, id, transcript, recordingPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET transcript = ?, recording_path = ?, updated_at = ? WHERE id = ?`,
		transcript, recordingPath, toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// SetAttendDeadline implements Store.
func (s *SQLiteStore) SetAttendDeadline(ctx context.Context, id string, deadline time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET attend_deadline = ?, updated_at = ? WHERE id = ?`,
		toMillis(deadline), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set attend deadline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// MarkReminderSent implements Store.
func (s *SQLiteStore) MarkReminderSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET reminder_sent = 1, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// CreateNote implements Store.
func (s *SQLiteStore) CreateNote(ctx context.Context, n *Note) error {
	if n.ID == "" {
		n.ID = NewNoteID()
	}
	if n.GeneratedAt.IsZero() {
		n.GeneratedAt = time.Now().UTC()
	}
	keyPoints, err := json.Marshal(nonNil(n.KeyPoints))
	if err != nil {
		return fmt.Errorf("failed to marshal key points: %w", err)
	}
	actionItems, err := json.Marshal(nonNil(n.ActionItems))
	if err != nil {
		return fmt.Errorf("failed to marshal action items: %w", err)
	}
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal note metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, meeting_id, title, content, summary, key_points, action_items,
			metadata, quality_tier, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.MeetingID, n.Title, n.Content, n.Summary, string(keyPoints), string(actionItems),
		string(metadata), string(n.QualityTier), toMillis(n.GeneratedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("note for meeting %s: %w", n.MeetingID, nterrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// ListNotes implements Store. Notes are returned oldest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, meetingID string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, title, content, summary, key_points, action_items, metadata,
			quality_tier, generated_at
		FROM notes WHERE meeting_id = ? ORDER BY generated_at ASC, id ASC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		var (
			n                            Note
			keyPoints, actions, metadata string
			tier                         string
			generated                    int64
		)
		if err := rows.Scan(&n.ID, &n.MeetingID, &n.Title, &n.Content, &n.Summary,
			&keyPoints, &actions, &metadata, &tier, &generated); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if err := json.Unmarshal([]byte(keyPoints), &n.KeyPoints); err != nil {
			n.KeyPoints = []string{}
		}
		if err := json.Unmarshal([]byte(actions), &n.ActionItems); err != nil {
			n.ActionItems = []string{}
		}
		_ = json.Unmarshal([]byte(metadata), &n.Metadata)
		n.QualityTier = QualityTier(tier)
		n.GeneratedAt = fromMillis(generated)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CountNotes implements Store.
func (s *SQLiteStore) CountNotes(ctx context.Context, meetingID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE meeting_id = ?`, meetingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// CreateUser implements Store.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.Email == "" {
		return fmt.Errorf("%w: user email is required", nterrors.ErrValidation)
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, toMillis(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("user %s: %w", u.Email, nterrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser implements Store.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PoolStats reports connection statistics for metrics.
func (s *SQLiteStore) PoolStats() db.StatsFunc {
	return db.SQLStats(s.db)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// Fields returns the log fields describing a status change.
func Fields(id string, from, to Status) []logging.Field {
	return []logging.Field{
		logging.Meeting(id),
		logging.F("from", string(from)),
		logging.F("to", string(to)),
	}
}
