package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSections_CanonicalLayout(t *testing.T) {
	got := ParseSections("SUMMARY:\nX\n\nKEY POINTS:\n- A\n- B\n\nACTION ITEMS:\n- C")

	assert.Equal(t, "X", got.Summary)
	assert.Equal(t, []string{"A", "B"}, got.KeyPoints)
	assert.Equal(t, []string{"C"}, got.ActionItems)
	assert.True(t, got.FoundSummary)
	assert.True(t, got.FoundKeyPoints)
}

func TestParseSections_MarkersAndAliases(t *testing.T) {
	content := strings.Join([]string{
		"## Overview",
		"The lecture introduced limits.",
		"It ended with examples.",
		"**Main Points:**",
		"1. Limits describe approach",
		"* Continuity needs limits",
		"• Epsilon-delta definition",
		"Next Steps:",
		"2) Read section 2.1",
		"TODO: finish worksheet",
	}, "\n")

	got := ParseSections(content)

	assert.Equal(t, "The lecture introduced limits. It ended with examples.", got.Summary)
	assert.Equal(t, []string{"Limits describe approach", "Continuity needs limits", "Epsilon-delta definition"}, got.KeyPoints)
	assert.Equal(t, []string{"Read section 2.1", "finish worksheet"}, got.ActionItems)
}

func TestParseSections_InlineHeaderContent(t *testing.T) {
	got := ParseSections("Summary: Integration by parts.\nKey points:\n- uv rule")

	assert.Equal(t, "Integration by parts.", got.Summary)
	assert.Equal(t, []string{"uv rule"}, got.KeyPoints)
}

func TestParseSections_ContentMentioningHeaderWords(t *testing.T) {
	content := "SUMMARY:\nShort recap.\nKEY POINTS:\n- Review the summary before the exam\n- We will revisit the key points"

	got := ParseSections(content)

	assert.Equal(t, "Short recap.", got.Summary)
	assert.Equal(t, []string{"Review the summary before the exam", "We will revisit the key points"}, got.KeyPoints)
	assert.Empty(t, got.ActionItems)
}

func TestParseSections_PreambleSentenceIsNotHeader(t *testing.T) {
	content := "Here is a summary of today's lecture:\nSUMMARY:\nDerivatives measure change.\nKEY POINTS:\n- Power rule"

	got := ParseSections(content)

	assert.Equal(t, "Derivatives measure change.", got.Summary)
	assert.Equal(t, []string{"Power rule"}, got.KeyPoints)

	preambleOnly := "Here is a summary of today's lecture:\nWe covered derivatives."
	got = ParseSections(preambleOnly)
	assert.False(t, got.FoundSummary)
	assert.Equal(t, preambleOnly, got.Summary)
}

func TestParseSections_Fallbacks(t *testing.T) {
	content := "line one\n\nline two\nline three\nline four\nline five\nline six"

	got := ParseSections(content)

	assert.False(t, got.FoundSummary)
	assert.False(t, got.FoundKeyPoints)
	assert.Equal(t, content, got.Summary)
	assert.Equal(t, []string{"line one", "line two", "line three", "line four", "line five"}, got.KeyPoints)
	assert.Equal(t, []string{}, got.ActionItems)
}

func TestParseSections_SummaryFallbackTruncates(t *testing.T) {
	content := strings.Repeat("é", 400)

	got := ParseSections(content)

	assert.Equal(t, 300, len([]rune(got.Summary)))
}

func TestParseSections_CapsLists(t *testing.T) {
	var b strings.Builder
	b.WriteString("KEY POINTS:\n")
	for i := 0; i < 15; i++ {
		b.WriteString("- point\n")
	}
	b.WriteString("ACTION ITEMS:\n")
	for i := 0; i < 12; i++ {
		b.WriteString("- act\n")
	}

	got := ParseSections(b.String())

	assert.Len(t, got.KeyPoints, MaxListItems)
	assert.Len(t, got.ActionItems, MaxListItems)
}

func TestParseSections_Empty(t *testing.T) {
	got := ParseSections("")

	assert.Equal(t, "", got.Summary)
	assert.Equal(t, []string{}, got.KeyPoints)
	assert.Equal(t, []string{}, got.ActionItems)
}
