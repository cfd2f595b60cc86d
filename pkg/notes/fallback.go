package notes

import (
	"context"

	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// Fallback tries a primary synthesizer and falls back to the heuristic on error.
// A nil primary means no AI credential is configured.
type Fallback struct {
	primary    Synthesizer
	heuristic  *Heuristic
	logger     logging.Logger
	onFallback func(err error)
}

// Option configures a Fallback.
type Option func(*Fallback)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(f *Fallback) {
		f.logger = l.With(logging.F("component", "note_synthesizer"))
	}
}

// WithFallbackHook registers a callback invoked each time the primary fails.
func WithFallbackHook(fn func(err error)) Option {
	return func(f *Fallback) {
		f.onFallback = fn
	}
}

// NewFallback composes primary (which may be nil) with the heuristic extractor.
func NewFallback(primary Synthesizer, opts ...Option) *Fallback {
	f := &Fallback{
		primary:   primary,
		heuristic: NewHeuristic(),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Synthesize implements Synthesizer. It never returns an error.
func (f *Fallback) Synthesize(ctx context.Context, transcript, meetingTitle string) (*Result, error) {
	if f.primary != nil {
		res, err := f.primary.Synthesize(ctx, transcript, meetingTitle)
		if err == nil {
			return res, nil
		}
		f.logger.Warn("AI note generation failed, using heuristic notes",
			logging.F("meeting_title", meetingTitle),
			logging.Err(err))
		if f.onFallback != nil {
			f.onFallback(err)
		}
	}
	return f.heuristic.Synthesize(ctx, transcript, meetingTitle)
}
