// Package attendance runs the meeting lifecycle: it joins meetings when their
// window opens, records them until the scheduled end, and turns the recording
// into a transcript and study notes.
//
// Every status change is a conditional transition in the store, and a
// successful transition is the claim on the meeting. A meeting's Note is always
// written before it is marked completed.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/otherjamesbrown/notetaker/pkg/email"
	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/events"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/notes"
	"github.com/otherjamesbrown/notetaker/pkg/observability"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
	"github.com/otherjamesbrown/notetaker/pkg/transcription"
)

var (
	// ErrAtCapacity is returned when every capture slot is in use.
	ErrAtCapacity = errors.New("all capture slots are in use")
	// ErrShuttingDown is returned for attendance requested after Shutdown.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
	// ErrNoCapture is returned when attendance is requested from an
	// orchestrator built without media capture, such as the sweep command's.
	ErrNoCapture = errors.New("media capture not configured")
)

// Config controls attendance timing.
type Config struct {
	// JoinLead is how long before the scheduled start a meeting is joined.
	JoinLead time.Duration `yaml:"join_lead"`
	// JoinGrace lets a tick shortly after the start still join instead of
	// leaving the meeting to the missed sweep.
	JoinGrace time.Duration `yaml:"join_grace"`
	// StuckMargin is added to the scheduled end before an in-progress
	// meeting is forcibly completed.
	StuckMargin   time.Duration `yaml:"stuck_margin"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	// PersistAttempts bounds retries of a single store write.
	PersistAttempts int           `yaml:"persist_attempts"`
	PersistBackoff  time.Duration `yaml:"persist_backoff"`
	// NotesBaseURL, when set, is linked from the notes-ready email.
	NotesBaseURL string `yaml:"notes_base_url"`
}

// DefaultConfig returns the default attendance configuration.
func DefaultConfig() Config {
	return Config{
		JoinLead:        5 * time.Minute,
		JoinGrace:       time.Minute,
		StuckMargin:     2 * time.Hour,
		MaxConcurrent:   4,
		PersistAttempts: 3,
		PersistBackoff:  500 * time.Millisecond,
	}
}

// Orchestrator drives meetings through scheduled, in-progress and
// completed or failed.
type Orchestrator struct {
	cfg         Config
	store       meetings.Store
	capture     MediaCapture
	transcriber Transcriber
	synthesizer notes.Synthesizer

	resolver  meetings.ContactResolver
	sender    email.Sender
	publisher events.Publisher
	metrics   *observability.PipelineMetrics
	tracer    *observability.Tracer
	clock     scheduler.Clock
	logger    logging.Logger

	slots    *semaphore.Weighted
	sessions *registry
	wg       sync.WaitGroup
	closing  atomic.Bool

	base context.Context
	stop context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l.With(logging.F("component", "attendance"))
	}
}

// WithClock sets the clock used for windows and completion timers.
func WithClock(c scheduler.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithPublisher publishes lifecycle events.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithNotifier emails the meeting owner when notes are ready.
func WithNotifier(resolver meetings.ContactResolver, sender email.Sender) Option {
	return func(o *Orchestrator) {
		o.resolver = resolver
		o.sender = sender
	}
}

// New creates an Orchestrator.
func New(cfg Config, store meetings.Store, capture MediaCapture, transcriber Transcriber, synthesizer notes.Synthesizer, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.JoinLead <= 0 {
		cfg.JoinLead = def.JoinLead
	}
	if cfg.JoinGrace < 0 {
		cfg.JoinGrace = 0
	}
	if cfg.StuckMargin <= 0 {
		cfg.StuckMargin = def.StuckMargin
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = def.PersistAttempts
	}
	if cfg.PersistBackoff < 0 {
		cfg.PersistBackoff = 0
	}
	if synthesizer == nil {
		synthesizer = notes.NewFallback(nil)
	}

	o := &Orchestrator{
		cfg:         cfg,
		store:       store,
		capture:     capture,
		transcriber: transcriber,
		synthesizer: synthesizer,
		publisher:   events.Nop{},
		clock:       scheduler.RealClock{},
		logger:      logging.NewNopLogger(),
		slots:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sessions:    newRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = observability.NewTracer()
	}
	o.base, o.stop = context.WithCancel(context.Background())
	return o
}

// AttendDue joins every scheduled meeting whose join window is open and
// returns how many were started. Meetings claimed by someone else are
// skipped silently.
func (o *Orchestrator) AttendDue(ctx context.Context) (int, error) {
	now := o.clock.Now()
	due, err := o.store.ListMeetings(ctx, meetings.Filter{
		Status: meetings.StatusScheduled,
		From:   now.Add(-o.cfg.JoinGrace),
		// To is exclusive and the store keeps millisecond precision.
		To: now.Add(o.cfg.JoinLead + time.Millisecond),
	})
	if err != nil {
		return 0, fmt.Errorf("list meetings due: %w", err)
	}

	var started atomic.Int64
	var g errgroup.Group
	for _, m := range due {
		g.Go(func() error {
			err := o.start(ctx, m)
			switch {
			case err == nil:
				started.Add(1)
			case nterrors.IsInvalidState(err):
				o.logger.Debug("Meeting already claimed", logging.Meeting(m.ID))
			case errors.Is(err, ErrAtCapacity):
				o.logger.Warn("No capture slot free, meeting left for the next tick", logging.Meeting(m.ID))
			default:
				o.logger.Error("Attendance failed to start", logging.Meeting(m.ID), logging.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(started.Load()), nil
}

// TriggerAttendance joins a scheduled meeting now, regardless of its window.
// It returns once the agent is in the meeting; recording and note generation
// continue in the background.
func (o *Orchestrator) TriggerAttendance(ctx context.Context, meetingID string) error {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if m.Status != meetings.StatusScheduled {
		return fmt.Errorf("meeting %s is %s: %w", m.ID, m.Status, nterrors.ErrInvalidState)
	}
	return o.start(ctx, m)
}

// Sessions lists live attendances.
func (o *Orchestrator) Sessions() []SessionInfo {
	return o.sessions.list()
}

// Wait blocks until every running pipeline has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown ends every live attendance early so its notes are produced from
// the audio recorded so far. Pipelines still running when ctx expires are
// aborted and left for the stuck sweep.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.closing.Store(true)
	o.sessions.fireAll()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.stop()
		return nil
	case <-ctx.Done():
		o.stop()
		return ctx.Err()
	}
}

// start claims m, joins it and arms its completion timer. On success the
// rest of the pipeline runs in the background.
func (o *Orchestrator) start(ctx context.Context, m *meetings.Meeting) error {
	if o.closing.Load() {
		return ErrShuttingDown
	}
	if o.capture == nil {
		return ErrNoCapture
	}
	if !o.slots.TryAcquire(1) {
		return ErrAtCapacity
	}
	o.wg.Add(1)
	if err := o.store.TransitionStatus(ctx, m.ID, meetings.StatusScheduled, meetings.StatusInProgress, ""); err != nil {
		o.wg.Done()
		o.slots.Release(1)
		return err
	}
	m.Status = meetings.StatusInProgress
	o.metrics.CaptureStarted()

	now := o.clock.Now()
	deadline := m.EndsAt()
	if !deadline.After(now) {
		// Manually triggered after the scheduled end: attend for the full duration.
		deadline = now.Add(m.Duration())
	}

	pctx, cancel := context.WithCancel(o.base)
	pctx = logging.ContextWithMeeting(pctx, m.ID)
	pctx, span := o.tracer.StartPipelineSpan(pctx, m.ID)
	logger := o.logger.WithContext(pctx)

	// The stuck sweep measures from this deadline, including after a restart.
	if err := o.persist(ctx, func(ctx context.Context) error {
		return o.store.SetAttendDeadline(ctx, m.ID, deadline)
	}); err != nil {
		logger.Warn("Could not record attendance deadline", logging.Err(err))
	} else {
		m.AttendDeadline = deadline
	}
	o.publishStatus(pctx, logger, m, meetings.StatusInProgress, "")

	var rec Recording
	err := o.stage(pctx, m.ID, nterrors.StageJoin, func(ctx context.Context) error {
		var err error
		rec, err = o.capture.Attend(ctx, m, deadline.Sub(now))
		return err
	})
	if err != nil {
		logger.Error("Could not join meeting", logging.Err(err))
		observability.SetError(span, err, string(nterrors.CodeOf(err)))
		o.fail(pctx, logger, m, err)
		span.End()
		cancel()
		o.metrics.CaptureEnded()
		o.slots.Release(1)
		o.wg.Done()
		return err
	}

	s := newSession(m.ID, now, deadline, cancel)
	s.timer = o.clock.AfterFunc(deadline.Sub(now), s.fire)
	if !o.sessions.add(s) {
		logger.Warn("Meeting already had a live session")
	}
	logger.Info("Attending meeting",
		logging.F("join_strategy", rec.JoinStrategy()),
		logging.F("deadline", deadline.Format(time.RFC3339)))

	go o.run(pctx, logger, span, s, m, rec)
	return nil
}

// run waits for the meeting to end and then produces its notes.
func (o *Orchestrator) run(ctx context.Context, logger logging.Logger, span trace.Span, s *session, m *meetings.Meeting, rec Recording) {
	defer o.wg.Done()
	defer o.slots.Release(1)
	defer o.metrics.CaptureEnded()
	defer span.End()
	defer o.sessions.remove(s)
	defer s.cancel()
	defer rec.Leave(context.WithoutCancel(ctx))

	select {
	case <-s.due:
	case <-rec.Done():
		logger.Warn("Capture ended before the scheduled end")
	case <-ctx.Done():
		logger.Warn("Attendance aborted, leaving meeting for reconciliation")
		observability.SetError(span, ctx.Err(), string(nterrors.ErrContextCancelled))
		return
	}

	note, err := o.finish(ctx, logger, m, rec)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Attendance aborted before notes were stored", logging.Err(err))
			observability.SetError(span, err, string(nterrors.ErrContextCancelled))
			return
		}
		logger.Error("Meeting pipeline failed", logging.Err(err))
		observability.SetError(span, err, string(nterrors.CodeOf(err)))
		o.fail(ctx, logger, m, err)
		return
	}

	observability.SetQualityTier(span, string(note.QualityTier))
	observability.SetSuccess(span)
	o.metrics.RecordPipeline(observability.OutcomeCompleted)
	o.metrics.RecordNote(string(note.QualityTier))
	o.publishStatus(ctx, logger, m, meetings.StatusCompleted, "")
	o.publishNotes(ctx, logger, m, note)
	o.notify(ctx, logger, m, note)
}

// finish stops capture, transcribes, synthesizes and stores the note, then
// marks the meeting completed.
func (o *Orchestrator) finish(ctx context.Context, logger logging.Logger, m *meetings.Meeting, rec Recording) (*meetings.Note, error) {
	var audio string
	_ = o.stage(ctx, m.ID, nterrors.StageRecord, func(ctx context.Context) error {
		var err error
		audio, err = rec.Stop(ctx)
		if err != nil {
			logger.Warn("Recording incomplete", logging.F("audio_path", audio), logging.Err(err))
			o.metrics.RecordFallback(nterrors.StageRecord)
		}
		return err
	})
	rec.Leave(ctx)

	var tr *transcription.Result
	_ = o.stage(ctx, m.ID, nterrors.StageTranscribe, func(ctx context.Context) error {
		tr = o.transcriber.Transcribe(ctx, audio)
		if tr.Placeholder {
			o.metrics.RecordFallback(nterrors.StageTranscribe)
			return nterrors.New(nterrors.ErrTranscriptionUnavailable, nterrors.StageTranscribe, tr.FallbackReason)
		}
		return nil
	})

	var res *notes.Result
	_ = o.stage(ctx, m.ID, nterrors.StageSynthesize, func(ctx context.Context) error {
		res = o.synthesize(ctx, logger, m, tr.Text)
		return nil
	})

	note := newNote(m, res, meetings.NoteMetadata{
		OriginalLanguage:      tr.LanguageName(),
		DurationSeconds:       tr.DurationSeconds,
		HasTranslation:        tr.Translated,
		TranscriptPlaceholder: tr.Placeholder,
	}, o.clock.Now())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := o.stage(ctx, m.ID, nterrors.StagePersist, func(ctx context.Context) error {
		if err := o.persist(ctx, func(ctx context.Context) error {
			return o.store.SetTranscript(ctx, m.ID, tr.Text, audio)
		}); err != nil {
			return nterrors.PersistenceFailed(err).WithMeeting(m.ID)
		}
		if err := o.persist(ctx, func(ctx context.Context) error {
			return o.store.CreateNote(ctx, note)
		}); err != nil {
			return nterrors.PersistenceFailed(err).WithMeeting(m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := o.complete(ctx, m); err != nil {
		return nil, err
	}
	logger.Info("Meeting completed",
		logging.F("note_id", note.ID),
		logging.F("quality_tier", string(note.QualityTier)),
		logging.F("placeholder_transcript", tr.Placeholder))
	return note, nil
}

// complete flips m from in-progress to completed. A meeting some sweep has
// already completed counts as done.
func (o *Orchestrator) complete(ctx context.Context, m *meetings.Meeting) error {
	err := o.persist(ctx, func(ctx context.Context) error {
		return o.store.TransitionStatus(ctx, m.ID, meetings.StatusInProgress, meetings.StatusCompleted, "")
	})
	if err != nil {
		if nterrors.IsInvalidState(err) {
			o.logger.Info("Meeting was already reconciled", logging.Meeting(m.ID))
			m.Status = meetings.StatusCompleted
			return nil
		}
		return nterrors.PersistenceFailed(err).WithMeeting(m.ID)
	}
	m.Status = meetings.StatusCompleted
	return nil
}

// fail moves m to failed and records the reason.
func (o *Orchestrator) fail(ctx context.Context, logger logging.Logger, m *meetings.Meeting, cause error) {
	ctx = context.WithoutCancel(ctx)
	reason := cause.Error()
	err := o.persist(ctx, func(ctx context.Context) error {
		return o.store.TransitionStatus(ctx, m.ID, meetings.StatusInProgress, meetings.StatusFailed, reason)
	})
	if err != nil {
		logger.Error("Failed to mark meeting failed", logging.Err(err))
		return
	}
	m.Status = meetings.StatusFailed
	m.FailureReason = reason
	o.metrics.RecordPipeline(observability.OutcomeFailed)
	o.publishStatus(ctx, logger, m, meetings.StatusFailed, reason)
}

// synthesize never fails; a synthesizer error falls back to the heuristic.
func (o *Orchestrator) synthesize(ctx context.Context, logger logging.Logger, m *meetings.Meeting, transcript string) *notes.Result {
	res, err := o.synthesizer.Synthesize(ctx, transcript, m.Title)
	if err != nil || res == nil {
		logger.Warn("Note synthesis failed, using heuristic notes", logging.Err(err))
		o.metrics.RecordFallback(nterrors.StageSynthesize)
		res = notes.Extract(transcript)
	}
	return res
}

// persist retries a store write. Claims and missing rows are not retried.
func (o *Orchestrator) persist(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= o.cfg.PersistAttempts ||
			nterrors.IsInvalidState(err) || nterrors.IsNotFound(err) || nterrors.IsValidation(err) {
			return err
		}
		o.logger.Warn("Store write failed, retrying",
			logging.F("attempt", attempt),
			logging.Err(err))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(o.cfg.PersistBackoff):
		}
	}
}

// stage runs fn inside a stage span and records its duration. Errors come
// back classified by stage.
func (o *Orchestrator) stage(ctx context.Context, meetingID, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.StartStageSpan(ctx, meetingID, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		pe := nterrors.ClassifyError(err, name)
		observability.SetError(span, pe, string(pe.Code))
		return pe
	}
	observability.SetSuccess(span)
	return nil
}

func (o *Orchestrator) publishStatus(ctx context.Context, logger logging.Logger, m *meetings.Meeting, status meetings.Status, reason string) {
	if err := o.publisher.MeetingStatusChanged(ctx, m, status, reason); err != nil {
		logger.Warn("Failed to publish status event", logging.F("status", string(status)), logging.Err(err))
	}
}

func (o *Orchestrator) publishNotes(ctx context.Context, logger logging.Logger, m *meetings.Meeting, n *meetings.Note) {
	if err := o.publisher.NotesReady(ctx, m, n); err != nil {
		logger.Warn("Failed to publish notes event", logging.Err(err))
	}
}

// notify emails the meeting owner that notes are ready. Delivery is best-effort.
func (o *Orchestrator) notify(ctx context.Context, logger logging.Logger, m *meetings.Meeting, n *meetings.Note) {
	if o.resolver == nil || o.sender == nil {
		return
	}
	contact, err := o.resolver.Resolve(ctx, m)
	if err != nil {
		logger.Warn("Could not resolve meeting owner", logging.Err(err))
		return
	}
	if contact == nil {
		logger.Debug("Meeting has no owner to notify")
		return
	}
	msg, err := email.NotesReadyMessage(email.Address{Email: contact.Email, Name: contact.Name}, m, n, o.notesURL(m.ID))
	if err != nil {
		logger.Warn("Could not render notes email", logging.Err(err))
		return
	}
	id, err := o.sender.Send(ctx, msg)
	if err != nil {
		logger.Warn("Notes email not delivered", logging.F("recipient", contact.Email), logging.Err(err))
		return
	}
	logger.Info("Notes email sent", logging.F("recipient", contact.Email), logging.F("message_id", id))
}

func (o *Orchestrator) notesURL(meetingID string) string {
	if o.cfg.NotesBaseURL == "" {
		return ""
	}
	return strings.TrimRight(o.cfg.NotesBaseURL, "/") + "/meetings/" + meetingID + "/notes"
}

func newNote(m *meetings.Meeting, r *notes.Result, meta meetings.NoteMetadata, at time.Time) *meetings.Note {
	title := r.Title
	if title == "" {
		title = m.Title
	}
	tier := r.Tier
	if tier == "" {
		tier = meetings.QualityHeuristic
	}
	return &meetings.Note{
		ID:          meetings.NewNoteID(),
		MeetingID:   m.ID,
		Title:       title,
		Content:     r.RawContent,
		Summary:     r.Summary,
		KeyPoints:   nonNil(r.KeyPoints),
		ActionItems: nonNil(r.ActionItems),
		Metadata:    meta,
		QualityTier: tier,
		GeneratedAt: at.UTC(),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
