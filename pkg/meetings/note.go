package meetings

import (
	"time"

	"github.com/google/uuid"
)

// QualityTier records which synthesis path produced a Note.
type QualityTier string

const (
	// QualityAI notes came from the text-generation service.
	QualityAI QualityTier = "ai"
	// QualityHeuristic notes came from the deterministic extractor.
	QualityHeuristic QualityTier = "heuristic"
	// QualityFiller notes were synthesized from filler text for a missed meeting.
	QualityFiller QualityTier = "filler"
)

// NoteMetadata describes the transcript a Note was generated from.
type NoteMetadata struct {
	OriginalLanguage string  `json:"original_language,omitempty" yaml:"original_language,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	HasTranslation   bool    `json:"has_translation" yaml:"has_translation"`
	// TranscriptPlaceholder is set when the transcription service was unavailable.
	TranscriptPlaceholder bool `json:"transcript_placeholder,omitempty" yaml:"transcript_placeholder,omitempty"`
}

// Note is the structured study note generated for a Meeting. Notes are never updated;
// regenerating produces a new Note.
type Note struct {
	ID          string       `json:"id" yaml:"id"`
	MeetingID   string       `json:"meeting_id" yaml:"meeting_id"`
	Title       string       `json:"title" yaml:"title"`
	Content     string       `json:"content" yaml:"content"`
	Summary     string       `json:"summary" yaml:"summary"`
	KeyPoints   []string     `json:"key_points" yaml:"key_points"`
	ActionItems []string     `json:"action_items" yaml:"action_items"`
	Metadata    NoteMetadata `json:"metadata" yaml:"metadata"`
	QualityTier QualityTier  `json:"quality_tier" yaml:"quality_tier"`
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
}

// NewNoteID returns a fresh note identifier.
func NewNoteID() string {
	return uuid.NewString()
}
