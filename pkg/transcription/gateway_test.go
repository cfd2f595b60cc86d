package transcription

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/notetaker/pkg/llm"
)

type fakeRecognizer struct {
	results []*Recognition
	errs    []error
	calls   int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, audioPath string) (*Recognition, error) {
	i := f.calls
	f.calls++
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	var rec *Recognition
	if i < len(f.results) {
		rec = f.results[i]
	}
	return rec, f.errs[i]
}

func newTestGateway(r Recognizer, tr Translator) (*Gateway, *[]time.Duration) {
	var slept []time.Duration
	g := NewGateway(r, tr, WithRetryPolicy(RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2,
	}))
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func TestGateway_EnglishPassThrough(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{{Text: "hello class", Language: "english", DurationSeconds: 42}},
		errs:    []error{nil},
	}
	tr := &mockProvider{}
	g, _ := newTestGateway(rec, NewLLMTranslator(tr))

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.Equal(t, "hello class", res.Text)
	assert.Equal(t, language.English, res.Language)
	assert.Equal(t, "English", res.LanguageName())
	assert.False(t, res.Translated)
	assert.False(t, res.Placeholder)
	assert.NoError(t, res.FallbackReason)
	tr.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGateway_TranslatesNonEnglish(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{{Text: "namaste", Language: "hindi", DurationSeconds: 10}},
		errs:    []error{nil},
	}
	tr := &mockProvider{}
	tr.On("Complete", mock.Anything, mock.Anything).
		Return(&llm.CompletionResponse{Content: "hello"}, nil)
	g, _ := newTestGateway(rec, NewLLMTranslator(tr))

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "namaste", res.OriginalText)
	assert.Equal(t, "Hindi", res.LanguageName())
	assert.True(t, res.Translated)
}

func TestGateway_TranslationFailureKeepsOriginal(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{{Text: "hola", Language: "es"}},
		errs:    []error{nil},
	}
	tr := &mockProvider{}
	tr.On("Complete", mock.Anything, mock.Anything).
		Return(nil, &llm.Error{Code: llm.ErrUnavailable, Message: "down"})
	g, _ := newTestGateway(rec, NewLLMTranslator(tr))

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.Equal(t, "hola", res.Text)
	assert.False(t, res.Translated)
	assert.False(t, res.Placeholder)
	assert.Equal(t, "Spanish", res.LanguageName())
}

func TestGateway_UnknownLanguageNotTranslated(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{{Text: "???", Language: ""}},
		errs:    []error{nil},
	}
	tr := &mockProvider{}
	g, _ := newTestGateway(rec, NewLLMTranslator(tr))

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.Equal(t, "???", res.Text)
	assert.Equal(t, "Unknown", res.LanguageName())
	tr.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGateway_RetriesThenPlaceholder(t *testing.T) {
	down := &llm.Error{Code: llm.ErrUnavailable, Message: "down"}
	rec := &fakeRecognizer{errs: []error{down}}
	g, slept := newTestGateway(rec, nil)

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.True(t, res.Placeholder)
	assert.Equal(t, PlaceholderText, res.Text)
	assert.Equal(t, language.English, res.Language)
	assert.ErrorIs(t, res.FallbackReason, down)
	assert.Equal(t, 3, rec.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestGateway_RetryRecovers(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{nil, {Text: "ok", Language: "en"}},
		errs:    []error{&llm.Error{Code: llm.ErrTimeout}, nil},
	}
	g, slept := newTestGateway(rec, nil)

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.False(t, res.Placeholder)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 2, rec.calls)
	assert.Len(t, *slept, 1)
}

func TestGateway_NoRetryOnUnauthorized(t *testing.T) {
	rec := &fakeRecognizer{errs: []error{&llm.Error{Code: llm.ErrUnauthorized}}}
	g, slept := newTestGateway(rec, nil)

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	assert.True(t, res.Placeholder)
	assert.Equal(t, 1, rec.calls)
	assert.Empty(t, *slept)
}

func TestGateway_NotConfigured(t *testing.T) {
	g := NewGateway(nil, nil)

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))

	require.NotNil(t, res)
	assert.True(t, res.Placeholder)
	assert.ErrorIs(t, res.FallbackReason, ErrNotConfigured)
	assert.InDelta(t, PlaceholderDurationSeconds, res.DurationSeconds, 0.001)
}

func TestGateway_UnusableAudio(t *testing.T) {
	rec := &fakeRecognizer{errs: []error{errors.New("should not be called")}}
	g, _ := newTestGateway(rec, nil)

	assert.True(t, g.Transcribe(context.Background(), "").Placeholder)
	assert.True(t, g.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3")).Placeholder)
	assert.True(t, g.Transcribe(context.Background(), writeAudio(t, "")).Placeholder)
	assert.Equal(t, 0, rec.calls)
}

func TestGateway_EmptyRecognitionUsesPlaceholder(t *testing.T) {
	rec := &fakeRecognizer{
		results: []*Recognition{{Text: "  ", Language: "en"}},
		errs:    []error{nil},
	}
	g, _ := newTestGateway(rec, nil)

	res := g.Transcribe(context.Background(), writeAudio(t, "a"))
	assert.True(t, res.Placeholder)
	assert.Error(t, res.FallbackReason)
}
