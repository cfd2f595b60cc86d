package notes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

const lecture = "Welcome to today's lecture on Advanced Mathematics. " +
	"Today we will be covering calculus and its applications in real-world scenarios. " +
	"First, let's discuss derivatives! Derivatives measure the rate of change of a function. " +
	"Is that clear? The derivative of x squared is 2x. " +
	"Next, integration is the reverse process of differentiation. " +
	"For homework, please complete exercises 1 through 10 in chapter 5. " +
	"You should also review the material we covered today. Thank you."

func TestExtract_Summary(t *testing.T) {
	got := Extract(lecture)

	assert.Equal(t, HeuristicTitle, got.Title)
	assert.Equal(t, "Welcome to today's lecture on Advanced Mathematics. "+
		"Today we will be covering calculus and its applications in real-world scenarios. "+
		"First, let's discuss derivatives.", got.Summary)
	assert.Equal(t, lecture, got.RawContent)
	assert.Equal(t, meetings.QualityHeuristic, got.Tier)
}

func TestExtract_KeyPointsAreFirstEightSentences(t *testing.T) {
	got := Extract(lecture)

	require.Len(t, got.KeyPoints, 8)
	assert.Equal(t, "Welcome to today's lecture on Advanced Mathematics", got.KeyPoints[0])
	assert.Equal(t, "Is that clear", got.KeyPoints[4])
	assert.Equal(t, "For homework, please complete exercises 1 through 10 in chapter 5", got.KeyPoints[7])
}

func TestExtract_HomeworkIsActionItem(t *testing.T) {
	got := Extract("We covered limits. For homework, please complete exercises 1 through 10, then rest.")

	assert.Contains(t, got.ActionItems, "For homework, please complete exercises 1 through 10, then rest")
	assert.NotContains(t, got.ActionItems, "We covered limits")
}

func TestExtract_ActionItemsCappedAtFive(t *testing.T) {
	got := Extract("You must read. You must write. You must listen. You must speak. You must rest. You must sleep.")

	assert.Len(t, got.ActionItems, 5)
	assert.Equal(t, "You must read", got.ActionItems[0])
}

func TestExtract_Deterministic(t *testing.T) {
	first := Extract(lecture)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(lecture))
	}
}

func TestExtract_Empty(t *testing.T) {
	got := Extract("  ")

	assert.Equal(t, "", got.Summary)
	assert.Empty(t, got.KeyPoints)
	assert.Empty(t, got.ActionItems)
}

func TestHeuristic_Synthesize(t *testing.T) {
	got, err := NewHeuristic().Synthesize(context.Background(), "One. Two.", "Ignored Title")
	require.NoError(t, err)
	assert.Equal(t, "One. Two.", got.Summary)
	assert.Equal(t, HeuristicTitle, got.Title)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitSentences("a... b?! c"))
	assert.Nil(t, SplitSentences("...!?"))
}

func TestFillerTranscript_ProducesActionItem(t *testing.T) {
	got := Extract(FillerTranscript("Chemistry"))

	assert.Contains(t, got.Summary, "Welcome to Chemistry")
	assert.Contains(t, got.ActionItems, "Students should review the material and complete the assigned exercises")
}
