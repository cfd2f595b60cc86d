package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/notes"
	"github.com/otherjamesbrown/notetaker/pkg/observability"
	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
)

// Job names registered by Jobs.
const (
	JobAttend      = "attend"
	JobStuckSweep  = "stuck-sweep"
	JobMissedSweep = "missed-sweep"
)

// Jobs returns the periodic work of the orchestrator. All three run once on
// start, so a restart immediately reconciles anything left behind.
func (o *Orchestrator) Jobs(interval time.Duration) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:       JobAttend,
			Interval:   interval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := o.AttendDue(ctx)
				return err
			},
		},
		{
			Name:       JobStuckSweep,
			Interval:   interval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := o.SweepStuck(ctx)
				return err
			},
		},
		{
			Name:       JobMissedSweep,
			Interval:   interval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := o.SweepMissed(ctx)
				return err
			},
		},
	}
}

// SweepStuck completes every in-progress meeting that is past its end by more
// than the stuck margin. The end is the live session's deadline when this
// process is attending, otherwise the later of the scheduled end and the
// recorded attendance deadline. A meeting without a Note gets one first,
// synthesized from its stored transcript or from filler text. Running it
// twice never adds a second Note.
func (o *Orchestrator) SweepStuck(ctx context.Context) (int, error) {
	ctx, span := o.tracer.StartSweepSpan(ctx, observability.ReconcileStuck)
	defer span.End()

	now := o.clock.Now()
	inProgress, err := o.store.ListMeetings(ctx, meetings.Filter{Status: meetings.StatusInProgress})
	if err != nil {
		observability.SetError(span, err, "")
		return 0, fmt.Errorf("list in-progress meetings: %w", err)
	}

	var n int
	var errs []error
	for _, m := range inProgress {
		end := m.EffectiveEnd()
		if s, ok := o.sessions.get(m.ID); ok && s.deadline.After(end) {
			end = s.deadline
		}
		if !now.After(end.Add(o.cfg.StuckMargin)) {
			continue
		}
		if o.sessions.cancel(m.ID) {
			o.logger.Warn("Aborting attendance that outlived its meeting", logging.Meeting(m.ID))
		}
		done, err := o.reconcileStuck(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			n++
		}
	}
	if err := errors.Join(errs...); err != nil {
		observability.SetError(span, err, string(nterrors.ErrPersistence))
		return n, err
	}
	observability.SetSuccess(span)
	return n, nil
}

func (o *Orchestrator) reconcileStuck(ctx context.Context, m *meetings.Meeting) (bool, error) {
	logger := o.logger.With(logging.Meeting(m.ID))

	count, err := o.store.CountNotes(ctx, m.ID)
	if err != nil {
		return false, fmt.Errorf("count notes for %s: %w", m.ID, err)
	}
	var note *meetings.Note
	if count == 0 {
		note = o.reconciledNote(ctx, logger, m, m.Transcript)
		if err := o.persist(ctx, func(ctx context.Context) error {
			return o.store.CreateNote(ctx, note)
		}); err != nil {
			return false, nterrors.PersistenceFailed(err).WithMeeting(m.ID)
		}
	}

	err = o.store.TransitionStatus(ctx, m.ID, meetings.StatusInProgress, meetings.StatusCompleted, "")
	if nterrors.IsInvalidState(err) {
		logger.Debug("Stuck meeting already resolved")
		return false, nil
	}
	if err != nil {
		return false, nterrors.PersistenceFailed(err).WithMeeting(m.ID)
	}
	m.Status = meetings.StatusCompleted

	logger.Warn("Reconciled stuck meeting",
		logging.F("ended_at", m.EndsAt()),
		logging.F("note_created", note != nil))
	o.metrics.RecordReconciled(observability.ReconcileStuck)
	o.publishStatus(ctx, logger, m, meetings.StatusCompleted, "")
	if note != nil {
		o.metrics.RecordNote(string(note.QualityTier))
		o.publishNotes(ctx, logger, m, note)
	}
	return true, nil
}

// SweepMissed completes every scheduled meeting whose start has passed
// without being joined. Each is claimed first, then given a Note built from
// filler text, then completed.
func (o *Orchestrator) SweepMissed(ctx context.Context) (int, error) {
	ctx, span := o.tracer.StartSweepSpan(ctx, observability.ReconcileMissed)
	defer span.End()

	now := o.clock.Now()
	missed, err := o.store.ListMeetings(ctx, meetings.Filter{
		Status: meetings.StatusScheduled,
		To:     now.Add(-o.cfg.JoinGrace),
	})
	if err != nil {
		observability.SetError(span, err, "")
		return 0, fmt.Errorf("list missed meetings: %w", err)
	}

	var n int
	var errs []error
	for _, m := range missed {
		done, err := o.reconcileMissed(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			n++
		}
	}
	if err := errors.Join(errs...); err != nil {
		observability.SetError(span, err, string(nterrors.ErrPersistence))
		return n, err
	}
	observability.SetSuccess(span)
	return n, nil
}

func (o *Orchestrator) reconcileMissed(ctx context.Context, m *meetings.Meeting) (bool, error) {
	logger := o.logger.With(logging.Meeting(m.ID))

	err := o.store.TransitionStatus(ctx, m.ID, meetings.StatusScheduled, meetings.StatusInProgress, "")
	if nterrors.IsInvalidState(err) {
		logger.Debug("Missed meeting already claimed")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim missed meeting %s: %w", m.ID, err)
	}
	m.Status = meetings.StatusInProgress

	note := o.reconciledNote(ctx, logger, m, "")
	if err := o.persist(ctx, func(ctx context.Context) error {
		return o.store.CreateNote(ctx, note)
	}); err != nil {
		perr := nterrors.PersistenceFailed(err).WithMeeting(m.ID)
		o.fail(ctx, logger, m, perr)
		return false, perr
	}
	if err := o.complete(ctx, m); err != nil {
		o.fail(ctx, logger, m, err)
		return false, err
	}

	logger.Info("Reconciled missed meeting", logging.F("scheduled_at", m.ScheduledAt))
	o.metrics.RecordReconciled(observability.ReconcileMissed)
	o.metrics.RecordNote(string(note.QualityTier))
	o.publishStatus(ctx, logger, m, meetings.StatusCompleted, "")
	o.publishNotes(ctx, logger, m, note)
	return true, nil
}

// reconciledNote synthesizes a Note for a meeting that was never captured to
// the end. Without a transcript the note is built from filler text.
func (o *Orchestrator) reconciledNote(ctx context.Context, logger logging.Logger, m *meetings.Meeting, transcript string) *meetings.Note {
	filler := transcript == ""
	if filler {
		transcript = notes.FillerTranscript(m.Title)
	}
	res := o.synthesize(ctx, logger, m, transcript)
	note := newNote(m, res, meetings.NoteMetadata{OriginalLanguage: "English"}, o.clock.Now())
	if filler {
		note.QualityTier = meetings.QualityFiller
	}
	return note
}
