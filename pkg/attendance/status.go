package attendance

import (
	"context"
	"fmt"

	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// TranscriptionStatus summarizes how far a meeting has got through the pipeline.
type TranscriptionStatus struct {
	MeetingID     string          `json:"meeting_id" yaml:"meeting_id"`
	Title         string          `json:"title" yaml:"title"`
	Status        meetings.Status `json:"status" yaml:"status"`
	HasTranscript bool            `json:"has_transcript" yaml:"has_transcript"`
	HasNotes      bool            `json:"has_notes" yaml:"has_notes"`
	NotesCount    int             `json:"notes_count" yaml:"notes_count"`
	// Attending is set while this process holds a live capture for the meeting.
	Attending     bool               `json:"attending" yaml:"attending"`
	FailureReason string             `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	FailureCode   nterrors.ErrorCode `json:"failure_code,omitempty" yaml:"failure_code,omitempty"`
	Hint          string             `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// LookupStatus reads a meeting's pipeline status from the store.
func LookupStatus(ctx context.Context, store meetings.Store, meetingID string) (*TranscriptionStatus, error) {
	m, err := store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	count, err := store.CountNotes(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("count notes for %s: %w", m.ID, err)
	}
	st := &TranscriptionStatus{
		MeetingID:     m.ID,
		Title:         m.Title,
		Status:        m.Status,
		HasTranscript: m.Transcript != "",
		HasNotes:      count > 0,
		NotesCount:    count,
		FailureReason: m.FailureReason,
	}
	if m.Status == meetings.StatusFailed {
		st.FailureCode = nterrors.CodeFromReason(m.FailureReason)
		st.Hint = nterrors.GetSuggestedAction(st.FailureCode)
	}
	return st, nil
}

// GetTranscriptionStatus reports a meeting's status, including whether this
// orchestrator is attending it right now.
func (o *Orchestrator) GetTranscriptionStatus(ctx context.Context, meetingID string) (*TranscriptionStatus, error) {
	st, err := LookupStatus(ctx, o.store, meetingID)
	if err != nil {
		return nil, err
	}
	_, st.Attending = o.sessions.get(st.MeetingID)
	return st, nil
}
