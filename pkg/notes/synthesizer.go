// Package notes turns a transcript into structured study notes.
//
// Two synthesizers implement the same contract: an AI-backed one that asks a
// text-generation service for a SUMMARY / KEY POINTS / ACTION ITEMS layout, and a
// deterministic heuristic extractor. Fallback composes them so that synthesis
// always yields a note.
package notes

import (
	"context"

	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// MaxListItems caps key points and action items in parsed AI output.
const MaxListItems = 10

// Result is a synthesized note before it is persisted.
type Result struct {
	Title       string
	Summary     string
	KeyPoints   []string
	ActionItems []string
	RawContent  string
	Tier        meetings.QualityTier
}

// Synthesizer produces notes from transcript text.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript, meetingTitle string) (*Result, error)
}
