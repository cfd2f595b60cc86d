// Package transcription converts recorded audio to English text.
//
// The Gateway never fails: when the speech service is unconfigured or keeps
// failing it returns a deterministic placeholder transcript instead.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// ErrNotConfigured is the fallback reason when no speech service is configured.
var ErrNotConfigured = errors.New("speech service not configured")

// Result is a transcript ready for note synthesis.
type Result struct {
	// Text is in the target language and is what downstream stages consume.
	Text string
	// OriginalText is the recognized text before translation.
	OriginalText    string
	Language        language.Tag
	DurationSeconds float64
	Translated      bool
	// Placeholder is set when Text is the stand-in transcript.
	Placeholder    bool
	FallbackReason error
}

// LanguageName returns the English name of the detected language.
func (r *Result) LanguageName() string {
	return LanguageName(r.Language)
}

// Gateway runs recognition, language detection and translation.
type Gateway struct {
	recognizer Recognizer
	translator Translator
	target     language.Tag
	retry      RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
	logger     logging.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) {
		g.logger = l.With(logging.F("component", "transcription_gateway"))
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) {
		g.retry = p
	}
}

// WithTargetLanguage sets the language transcripts are translated into.
func WithTargetLanguage(tag language.Tag) Option {
	return func(g *Gateway) {
		g.target = tag
	}
}

// NewGateway creates a gateway. A nil recognizer always yields the placeholder;
// a nil translator leaves non-English text untranslated.
func NewGateway(recognizer Recognizer, translator Translator, opts ...Option) *Gateway {
	g := &Gateway{
		recognizer: recognizer,
		translator: translator,
		target:     language.English,
		retry:      DefaultRetryPolicy(),
		sleep:      sleepContext,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Transcribe returns the transcript for audioPath. The result is never nil;
// check Placeholder and FallbackReason to see whether the service was used.
func (g *Gateway) Transcribe(ctx context.Context, audioPath string) *Result {
	log := g.logger.WithContext(ctx)

	if g.recognizer == nil {
		log.Info("Speech service not configured, using placeholder transcript")
		return Placeholder(ErrNotConfigured)
	}
	if err := checkAudio(audioPath); err != nil {
		log.Warn("Audio unusable, using placeholder transcript", logging.Err(err))
		return Placeholder(err)
	}

	rec, err := g.recognize(ctx, audioPath)
	if err != nil {
		log.Warn("Transcription failed, using placeholder transcript",
			logging.F("audio_path", audioPath),
			logging.Err(err))
		return Placeholder(err)
	}
	if strings.TrimSpace(rec.Text) == "" {
		log.Warn("No speech recognized, using placeholder transcript", logging.F("audio_path", audioPath))
		return Placeholder(errors.New("no speech recognized"))
	}

	res := &Result{
		Text:            rec.Text,
		OriginalText:    rec.Text,
		Language:        ParseLanguage(rec.Language),
		DurationSeconds: rec.DurationSeconds,
	}

	if g.needsTranslation(res.Language) {
		translated, err := g.translator.Translate(ctx, rec.Text, res.Language)
		switch {
		case err != nil:
			log.Warn("Translation failed, keeping original text",
				logging.F("language", res.Language.String()),
				logging.Err(err))
		case strings.TrimSpace(translated) == "":
			log.Warn("Translation returned no text, keeping original text",
				logging.F("language", res.Language.String()))
		default:
			res.Text = translated
			res.Translated = true
		}
	}

	log.Info("Transcription complete",
		logging.F("language", res.Language.String()),
		logging.F("duration_seconds", res.DurationSeconds),
		logging.F("translated", res.Translated))
	return res
}

func (g *Gateway) needsTranslation(detected language.Tag) bool {
	if g.translator == nil || detected == language.Und {
		return false
	}
	return !SameLanguage(detected, g.target)
}

func (g *Gateway) recognize(ctx context.Context, audioPath string) (*Recognition, error) {
	for attempt := 0; ; attempt++ {
		rec, err := g.recognizer.Recognize(ctx, audioPath)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil || !g.retry.ShouldRetry(err, attempt) {
			return nil, err
		}

		backoff := g.retry.CalculateBackoff(attempt)
		g.logger.Debug("Retrying transcription",
			logging.F("attempt", attempt+1),
			logging.F("backoff", backoff),
			logging.Err(err))
		if err := g.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func checkAudio(path string) error {
	if path == "" {
		return errors.New("no audio recorded")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file %s is empty", path)
	}
	return nil
}
