package notes

import (
	"context"
	"regexp"
	"strings"

	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// HeuristicTitle is the title given to heuristic notes.
const HeuristicTitle = "Meeting Notes"

const (
	heuristicSummarySentences = 3
	heuristicKeyPoints        = 8
	heuristicActionItems      = 5
)

// ActionMarkers are the phrases that make a sentence an action item.
var ActionMarkers = []string{
	"should",
	"need to",
	"must",
	"have to",
	"will",
	"going to",
	"homework",
	"assignment",
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// Heuristic extracts notes from a transcript without any external service.
// Output depends only on the transcript text.
type Heuristic struct{}

// NewHeuristic returns the heuristic synthesizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Synthesize implements Synthesizer. It never returns an error.
func (h *Heuristic) Synthesize(_ context.Context, transcript, _ string) (*Result, error) {
	return Extract(transcript), nil
}

// Extract applies the sentence heuristics to transcript.
func Extract(transcript string) *Result {
	sentences := SplitSentences(transcript)

	summary := ""
	if len(sentences) > 0 {
		summary = strings.Join(head(sentences, heuristicSummarySentences), ". ") + "."
	}

	actions := []string{}
	for _, s := range sentences {
		if len(actions) == heuristicActionItems {
			break
		}
		if hasActionMarker(s) {
			actions = append(actions, s)
		}
	}

	return &Result{
		Title:       HeuristicTitle,
		Summary:     summary,
		KeyPoints:   append([]string{}, head(sentences, heuristicKeyPoints)...),
		ActionItems: actions,
		RawContent:  transcript,
		Tier:        meetings.QualityHeuristic,
	}
}

// SplitSentences splits text on runs of '.', '!' and '?', trimming each
// sentence and dropping empty ones.
func SplitSentences(text string) []string {
	var out []string
	for _, part := range sentenceBreak.Split(text, -1) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasActionMarker(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, m := range ActionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
