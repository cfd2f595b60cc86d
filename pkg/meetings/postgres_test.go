package meetings

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetaker/migrations"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// newPostgresStore connects to NOTETAKER_TEST_DATABASE_URL, skipping when unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	dsn := os.Getenv("NOTETAKER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NOTETAKER_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := db.DefaultConfig()
	cfg.DSN = dsn
	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.RunMigrations(ctx, pool, migrations.Postgres, "postgres")
	require.NoError(t, err)
	return NewPostgresStore(pool, logging.NewNopLogger())
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	m := NewMeeting("pg meeting", "https://meet.example/pg", time.Now().Add(time.Hour).Truncate(time.Millisecond), 30)
	require.NoError(t, store.CreateMeeting(ctx, m))

	got, err := store.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, m.ScheduledAt.Equal(got.ScheduledAt))

	require.NoError(t, store.TransitionStatus(ctx, m.ID, StatusScheduled, StatusInProgress, ""))
	assert.True(t, nterrors.IsInvalidState(store.TransitionStatus(ctx, m.ID, StatusScheduled, StatusInProgress, "")))

	n := &Note{MeetingID: m.ID, Title: "pg meeting - Notes", KeyPoints: []string{"A"}, QualityTier: QualityAI}
	require.NoError(t, store.CreateNote(ctx, n))
	require.NoError(t, store.TransitionStatus(ctx, m.ID, StatusInProgress, StatusCompleted, ""))

	notes, err := store.ListNotes(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"A"}, notes[0].KeyPoints)
	assert.Equal(t, []string{}, notes[0].ActionItems)

	_, err = store.GetMeeting(ctx, "not-a-uuid")
	assert.True(t, nterrors.IsNotFound(err))
}
