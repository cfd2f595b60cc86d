package notes

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/notetaker/pkg/llm"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// SystemPrompt instructs the model to answer in the layout ParseSections reads.
const SystemPrompt = `You are an expert educational assistant that creates comprehensive study notes from lecture transcripts.

Your task is to:
1. Create a clear, concise summary
2. Extract key concepts and main points
3. Identify action items or homework
4. Organize information in a student-friendly format

Format your response as:

SUMMARY:
[2-3 sentence overview]

KEY POINTS:
- [Point 1]
- [Point 2]
- [Point 3]
...

ACTION ITEMS:
- [Action 1]
- [Action 2]
...`

// AI synthesizes notes with a text-generation service.
type AI struct {
	provider    llm.Provider
	temperature float32
	maxTokens   int
}

// NewAI creates an AI-backed synthesizer. Zero temperature or maxTokens use the
// provider defaults.
func NewAI(provider llm.Provider, temperature float32, maxTokens int) *AI {
	return &AI{provider: provider, temperature: temperature, maxTokens: maxTokens}
}

// BuildPrompt returns the user message for a transcript.
func BuildPrompt(transcript, meetingTitle string) string {
	if meetingTitle == "" {
		meetingTitle = "Meeting"
	}
	return fmt.Sprintf("Meeting Title: %s\n\nTranscript:\n%s", meetingTitle, transcript)
}

// Synthesize implements Synthesizer. Errors come from the provider; callers
// decide whether to fall back.
func (a *AI) Synthesize(ctx context.Context, transcript, meetingTitle string) (*Result, error) {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Prompt:       BuildPrompt(transcript, meetingTitle),
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate notes: %w", err)
	}

	sections := ParseSections(resp.Content)
	if meetingTitle == "" {
		meetingTitle = "Meeting"
	}
	return &Result{
		Title:       meetingTitle + " - Notes",
		Summary:     sections.Summary,
		KeyPoints:   sections.KeyPoints,
		ActionItems: sections.ActionItems,
		RawContent:  resp.Content,
		Tier:        meetings.QualityAI,
	}, nil
}
