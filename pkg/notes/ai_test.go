package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetaker/pkg/llm"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*llm.CompletionResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAI_Synthesize(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.CompletionRequest) bool {
		return req.SystemPrompt == SystemPrompt &&
			req.Prompt == "Meeting Title: Calculus\n\nTranscript:\nhello" &&
			req.Temperature == 0.7 && req.MaxTokens == 1000
	})).Return(&llm.CompletionResponse{
		Content: "SUMMARY:\nX\n\nKEY POINTS:\n- A\n- B\n\nACTION ITEMS:\n- C",
	}, nil)

	got, err := NewAI(provider, 0.7, 1000).Synthesize(context.Background(), "hello", "Calculus")
	require.NoError(t, err)

	assert.Equal(t, "Calculus - Notes", got.Title)
	assert.Equal(t, "X", got.Summary)
	assert.Equal(t, []string{"A", "B"}, got.KeyPoints)
	assert.Equal(t, []string{"C"}, got.ActionItems)
	assert.Equal(t, meetings.QualityAI, got.Tier)
	provider.AssertExpectations(t)
}

func TestAI_SynthesizeError(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(nil, &llm.Error{Code: llm.ErrUnavailable, Message: "down"})

	_, err := NewAI(provider, 0, 0).Synthesize(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, llm.ErrUnavailable, llm.CodeOf(err))
}

func TestBuildPrompt_DefaultTitle(t *testing.T) {
	assert.Equal(t, "Meeting Title: Meeting\n\nTranscript:\nt", BuildPrompt("t", ""))
}

func TestFallback_UsesPrimary(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(&llm.CompletionResponse{Content: "SUMMARY:\nfrom ai"}, nil)

	got, err := NewFallback(NewAI(provider, 0, 0)).Synthesize(context.Background(), "One. Two.", "Bio")
	require.NoError(t, err)
	assert.Equal(t, meetings.QualityAI, got.Tier)
	assert.Equal(t, "from ai", got.Summary)
}

func TestFallback_HeuristicOnError(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	var hooked error
	f := NewFallback(NewAI(provider, 0, 0), WithFallbackHook(func(err error) { hooked = err }))

	got, err := f.Synthesize(context.Background(), "One. Two.", "Bio")
	require.NoError(t, err)
	assert.Equal(t, meetings.QualityHeuristic, got.Tier)
	assert.Equal(t, "One. Two.", got.Summary)
	assert.Error(t, hooked)
}

func TestFallback_NoPrimary(t *testing.T) {
	got, err := NewFallback(nil).Synthesize(context.Background(), "Only sentence", "Bio")
	require.NoError(t, err)
	assert.Equal(t, meetings.QualityHeuristic, got.Tier)
	assert.Equal(t, "Only sentence.", got.Summary)
}
