package reminders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetaker/pkg/email"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/observability"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
)

var now = time.Date(2026, 3, 9, 13, 50, 0, 0, time.UTC)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// markFailStore cannot record the reminder flag.
type markFailStore struct {
	meetings.Store
}

func (markFailStore) MarkReminderSent(context.Context, string) error {
	return errors.New("database is locked")
}

type fixture struct {
	ctx     context.Context
	store   *meetings.SQLiteStore
	sender  *mockSender
	metrics *observability.PipelineMetrics
	owner   *meetings.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := meetings.OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "notetaker.db"), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	owner := meetings.NewUser("ana@example.com", "Ana")
	require.NoError(t, store.CreateUser(ctx, owner))

	return &fixture{
		ctx:     ctx,
		store:   store,
		sender:  &mockSender{},
		metrics: observability.NewPipelineMetrics(prometheus.NewRegistry()),
		owner:   owner,
	}
}

func (f *fixture) scheduler(s meetings.Store) *Scheduler {
	return New(DefaultConfig(), s, meetings.NewStoreContactResolver(f.store), f.sender,
		WithClock(scheduler.NewFakeClock(now)),
		WithMetrics(f.metrics),
	)
}

func (f *fixture) meeting(t *testing.T, title string, in time.Duration, owned bool) *meetings.Meeting {
	t.Helper()
	m := meetings.NewMeeting(title, "https://meet.google.com/rem-inde-rrr", now.Add(in), 50)
	if owned {
		m.UserID = f.owner.ID
	}
	require.NoError(t, f.store.CreateMeeting(f.ctx, m))
	return m
}

func (f *fixture) reminded(t *testing.T, id string) bool {
	t.Helper()
	m, err := f.store.GetMeeting(f.ctx, id)
	require.NoError(t, err)
	return m.ReminderSent
}

func (f *fixture) count(result string) float64 {
	return testutil.ToFloat64(f.metrics.RemindersTotal.WithLabelValues(result))
}

func TestSendDue_Window(t *testing.T) {
	f := newFixture(t)
	tooSoon := f.meeting(t, "Too soon", 9*time.Minute, true)
	lowEdge := f.meeting(t, "Low edge", 10*time.Minute, true)
	inside := f.meeting(t, "Inside", 12*time.Minute, true)
	highEdge := f.meeting(t, "High edge", 15*time.Minute, true)
	tooLate := f.meeting(t, "Too late", 16*time.Minute, true)

	f.sender.On("Send", mock.Anything, mock.AnythingOfType("email.Message")).Return("msg-1", nil)

	sum, err := f.scheduler(f.store).SendDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Sent: 3}, sum)
	f.sender.AssertNumberOfCalls(t, "Send", 3)

	assert.False(t, f.reminded(t, tooSoon.ID))
	assert.True(t, f.reminded(t, lowEdge.ID))
	assert.True(t, f.reminded(t, inside.ID))
	assert.True(t, f.reminded(t, highEdge.ID))
	assert.False(t, f.reminded(t, tooLate.ID))
	assert.Equal(t, 3.0, f.count(observability.ReminderSent))
}

func TestSendDue_MessageContent(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "Organic Chemistry", 12*time.Minute, true)

	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return msg.To.Email == "ana@example.com" &&
			msg.To.Name == "Ana" &&
			msg.Subject == "Reminder: Organic Chemistry starts soon"
	})).Return("msg-1", nil).Once()

	_, err := f.scheduler(f.store).SendDue(f.ctx)
	require.NoError(t, err)
	f.sender.AssertExpectations(t)
}

func TestSendDue_AtMostOnce(t *testing.T) {
	f := newFixture(t)
	m := f.meeting(t, "Once only", 11*time.Minute, true)
	f.sender.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	s := f.scheduler(f.store)
	_, err := s.SendDue(f.ctx)
	require.NoError(t, err)
	sum, err := s.SendDue(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, Summary{}, sum)
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	assert.True(t, f.reminded(t, m.ID))
}

func TestSendDue_SkipsOwnerless(t *testing.T) {
	f := newFixture(t)
	m := f.meeting(t, "Nobody's", 12*time.Minute, false)

	sum, err := f.scheduler(f.store).SendDue(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, Summary{Skipped: 1}, sum)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.False(t, f.reminded(t, m.ID))
	assert.Equal(t, 1.0, f.count(observability.ReminderSkipped))
}

func TestSendDue_SkipsNonScheduled(t *testing.T) {
	f := newFixture(t)
	m := meetings.NewMeeting("Called off", "https://meet.google.com/x", now.Add(12*time.Minute), 30)
	m.UserID = f.owner.ID
	m.Status = meetings.StatusCancelled
	require.NoError(t, f.store.CreateMeeting(f.ctx, m))

	sum, err := f.scheduler(f.store).SendDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendDue_DeliveryFailureStillSetsFlag(t *testing.T) {
	f := newFixture(t)
	m := f.meeting(t, "Bounced", 12*time.Minute, true)
	f.sender.On("Send", mock.Anything, mock.Anything).Return("", errors.New("brevo returned 502")).Once()

	s := f.scheduler(f.store)
	sum, err := s.SendDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Failed: 1}, sum)
	assert.True(t, f.reminded(t, m.ID))
	assert.Equal(t, 1.0, f.count(observability.ReminderFailed))

	sum, err = s.SendDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	f.sender.AssertExpectations(t)
}

func TestSendDue_FlagWriteFailureDoesNotResend(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "Locked", 12*time.Minute, true)
	f.sender.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil).Once()

	s := f.scheduler(markFailStore{Store: f.store})
	sum, err := s.SendDue(f.ctx)
	assert.Error(t, err)
	assert.Equal(t, Summary{Sent: 1}, sum)

	sum, err = s.SendDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)
	f.sender.AssertExpectations(t)
}

func TestJob(t *testing.T) {
	f := newFixture(t)
	job := f.scheduler(f.store).Job(5 * time.Minute)
	assert.Equal(t, JobName, job.Name)
	assert.Equal(t, 5*time.Minute, job.Interval)
	assert.True(t, job.RunOnStart)
	assert.NoError(t, job.Run(f.ctx))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{LookaheadMin: -time.Minute, LookaheadMax: time.Minute}.Validate())
	assert.Error(t, Config{LookaheadMin: 15 * time.Minute, LookaheadMax: 10 * time.Minute}.Validate())
}
