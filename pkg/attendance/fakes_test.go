package attendance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/notetaker/pkg/email"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/notes"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
	"github.com/otherjamesbrown/notetaker/pkg/transcription"
)

const lectureText = "Today we covered vectors and their components. " +
	"You should finish problem set three before Friday. " +
	"Next week we start matrices."

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeRecording struct {
	audioPath string
	stopErr   error
	done      chan struct{}
	doneOnce  sync.Once
	stops     atomic.Int32
	leaves    atomic.Int32
}

func newFakeRecording(path string) *fakeRecording {
	return &fakeRecording{audioPath: path, done: make(chan struct{})}
}

func (r *fakeRecording) end() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *fakeRecording) Done() <-chan struct{} { return r.done }

func (r *fakeRecording) Stop(context.Context) (string, error) {
	r.stops.Add(1)
	r.end()
	return r.audioPath, r.stopErr
}

func (r *fakeRecording) Leave(context.Context) {
	r.leaves.Add(1)
	r.end()
}

func (r *fakeRecording) JoinStrategy() string { return "join-now" }

type fakeCapture struct {
	mu         sync.Mutex
	attendErr  error
	stopErr    error
	recordings []*fakeRecording
	durations  []time.Duration
}

func (c *fakeCapture) Attend(_ context.Context, m *meetings.Meeting, duration time.Duration) (Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations = append(c.durations, duration)
	if c.attendErr != nil {
		return nil, c.attendErr
	}
	rec := newFakeRecording(fmt.Sprintf("/recordings/%s.mp3", m.ID))
	rec.stopErr = c.stopErr
	c.recordings = append(c.recordings, rec)
	return rec, nil
}

func (c *fakeCapture) recording(i int) *fakeRecording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordings[i]
}

func (c *fakeCapture) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.durations)
}

type fakeTranscriber struct {
	mu     sync.Mutex
	result *transcription.Result
	paths  []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) *transcription.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, audioPath)
	if f.result != nil {
		return f.result
	}
	return &transcription.Result{
		Text:            lectureText,
		OriginalText:    lectureText,
		Language:        language.English,
		DurationSeconds: 1200,
	}
}

type stubSynthesizer struct {
	res *notes.Result
	err error
}

func (s stubSynthesizer) Synthesize(context.Context, string, string) (*notes.Result, error) {
	return s.res, s.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) MeetingStatusChanged(_ context.Context, _ *meetings.Meeting, status meetings.Status, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, string(status))
	return nil
}

func (p *fakePublisher) NotesReady(context.Context, *meetings.Meeting, *meetings.Note) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "notes.ready")
	return nil
}

func (p *fakePublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("msg-%d", len(s.sent)), nil
}

func (s *fakeSender) messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}

// noteFailStore rejects every note write.
type noteFailStore struct {
	meetings.Store
	calls atomic.Int32
}

func (s *noteFailStore) CreateNote(context.Context, *meetings.Note) error {
	s.calls.Add(1)
	return errors.New("disk full")
}

type harness struct {
	ctx         context.Context
	clock       *scheduler.FakeClock
	store       *meetings.SQLiteStore
	capture     *fakeCapture
	transcriber *fakeTranscriber
	publisher   *fakePublisher
	sender      *fakeSender
	orch        *Orchestrator
}

type harnessOptions struct {
	cfg        Config
	wrapStore  func(meetings.Store) meetings.Store
	synth      notes.Synthesizer
	attendErr  error
	stopErr    error
	transcript *transcription.Result
}

type harnessOption func(*harnessOptions)

func withConfig(fn func(*Config)) harnessOption {
	return func(o *harnessOptions) { fn(&o.cfg) }
}

func withStore(wrap func(meetings.Store) meetings.Store) harnessOption {
	return func(o *harnessOptions) { o.wrapStore = wrap }
}

func withSynthesizer(s notes.Synthesizer) harnessOption {
	return func(o *harnessOptions) { o.synth = s }
}

func withAttendError(err error) harnessOption {
	return func(o *harnessOptions) { o.attendErr = err }
}

func withStopError(err error) harnessOption {
	return func(o *harnessOptions) { o.stopErr = err }
}

func withTranscript(r *transcription.Result) harnessOption {
	return func(o *harnessOptions) { o.transcript = r }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ho := harnessOptions{cfg: DefaultConfig()}
	ho.cfg.PersistBackoff = 0
	for _, opt := range opts {
		opt(&ho)
	}

	ctx := context.Background()
	store, err := meetings.OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "notetaker.db"), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var s meetings.Store = store
	if ho.wrapStore != nil {
		s = ho.wrapStore(store)
	}

	h := &harness{
		ctx:         ctx,
		clock:       scheduler.NewFakeClock(t0),
		store:       store,
		capture:     &fakeCapture{attendErr: ho.attendErr, stopErr: ho.stopErr},
		transcriber: &fakeTranscriber{result: ho.transcript},
		publisher:   &fakePublisher{},
		sender:      &fakeSender{},
	}
	h.orch = New(ho.cfg, s, h.capture, h.transcriber, ho.synth,
		WithClock(h.clock),
		WithPublisher(h.publisher),
		WithNotifier(meetings.NewStoreContactResolver(store), h.sender),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
	})
	return h
}

// schedule stores a meeting starting offset from t0.
func (h *harness) schedule(t *testing.T, title string, offset time.Duration, minutes int) *meetings.Meeting {
	t.Helper()
	m := meetings.NewMeeting(title, "https://meet.google.com/abc-defg-hij", t0.Add(offset), minutes)
	require.NoError(t, h.store.CreateMeeting(h.ctx, m))
	return m
}

func (h *harness) get(t *testing.T, id string) *meetings.Meeting {
	t.Helper()
	m, err := h.store.GetMeeting(h.ctx, id)
	require.NoError(t, err)
	return m
}

func (h *harness) listNotes(t *testing.T, id string) []*meetings.Note {
	t.Helper()
	list, err := h.store.ListNotes(h.ctx, id)
	require.NoError(t, err)
	return list
}
