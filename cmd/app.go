// Package cmd provides CLI commands for the notetaker tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/credentials"
	"github.com/otherjamesbrown/notetaker/migrations"
	"github.com/otherjamesbrown/notetaker/pkg/attendance"
	"github.com/otherjamesbrown/notetaker/pkg/capture"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	"github.com/otherjamesbrown/notetaker/pkg/email"
	"github.com/otherjamesbrown/notetaker/pkg/events"
	"github.com/otherjamesbrown/notetaker/pkg/llm"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/notes"
	"github.com/otherjamesbrown/notetaker/pkg/observability"
	"github.com/otherjamesbrown/notetaker/pkg/reminders"
	"github.com/otherjamesbrown/notetaker/pkg/transcription"
)

// App is the wired runtime shared by serve, attend and sweep.
type App struct {
	Config       *config.Config
	Logger       logging.Logger
	Store        meetings.Store
	Registry     *prometheus.Registry
	Metrics      *observability.PipelineMetrics
	Orchestrator *attendance.Orchestrator
	Reminders    *reminders.Scheduler

	closers []func() error
}

// AppOptions selects the optional parts of the runtime.
type AppOptions struct {
	// Capture wires the browser agent; sweeps and status lookups do not need it.
	Capture bool
}

// Close releases the store and any connections opened for the app.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(cfg.LoggingConfig())
}

// ResolveSecrets fills the secret fields of cfg from the environment or keyring.
// Missing secrets leave the dependent services in their degraded mode.
func ResolveSecrets(cfg *config.Config, resolver *credentials.Resolver, logger logging.Logger) {
	resolve := func(name string, dst *string) {
		if *dst != "" {
			return
		}
		value, err := resolver.Resolve(name)
		if err != nil {
			logger.Warn("Could not read secret from keyring",
				logging.F("secret", name),
				logging.Err(err))
			return
		}
		*dst = value
	}
	resolve(credentials.OpenAIAPIKey, &cfg.AI.APIKey)
	resolve(credentials.BrevoAPIKey, &cfg.Email.APIKey)
	resolve(credentials.DBPassword, &cfg.Store.Password)
	resolve(credentials.RedisPassword, &cfg.Redis.Password)
}

const (
	storeConnectAttempts = 3
	storeConnectDelay    = 2 * time.Second
)

// OpenStore opens the configured meeting store. The sqlite store migrates
// itself; postgres schema changes are applied with `notetaker db migrate`.
func OpenStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (meetings.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.ConnectWithRetry(ctx, cfg.PostgresConfig(), db.Retry{
			Attempts: storeConnectAttempts,
			Delay:    storeConnectDelay,
			OnRetry: func(attempt int, err error) {
				logger.Warn("Postgres not reachable, retrying",
					logging.F("attempt", attempt),
					logging.Err(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		pending, err := db.GetPendingMigrations(ctx, pool, migrations.Postgres, "postgres")
		if err != nil {
			logger.Warn("Could not check schema migrations", logging.Err(err))
		} else if len(pending) > 0 {
			logger.Warn("Database schema is behind, run 'notetaker db migrate'",
				logging.F("pending", len(pending)))
		}
		return meetings.NewPostgresStore(pool, logger), nil
	case config.DriverSQLite:
		if err := ensureParentDir(cfg.Store.SQLitePath); err != nil {
			return nil, err
		}
		return meetings.OpenSQLiteStore(ctx, cfg.Store.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewTranscriber builds the transcription gateway. Without an AI key every
// transcript is the placeholder.
func NewTranscriber(cfg *config.Config, logger logging.Logger) attendance.Transcriber {
	opts := []transcription.Option{
		transcription.WithLogger(logger),
		transcription.WithRetryPolicy(cfg.RetryPolicy()),
		transcription.WithTargetLanguage(language.Make(cfg.Transcription.TargetLanguage)),
	}
	if cfg.AI.APIKey == "" {
		return transcription.NewGateway(nil, nil, opts...)
	}
	recognizer := transcription.NewWhisperClient(cfg.SpeechConfig())
	translator := transcription.NewLLMTranslator(llm.NewOpenAIProvider(cfg.LLMConfig()))
	return transcription.NewGateway(recognizer, translator, opts...)
}

// NewSynthesizer builds the note synthesizer: AI-backed with a heuristic
// fallback when a key is configured, heuristic only otherwise.
func NewSynthesizer(cfg *config.Config, logger logging.Logger, metrics *observability.PipelineMetrics) notes.Synthesizer {
	if cfg.AI.APIKey == "" {
		return notes.NewHeuristic()
	}
	ai := notes.NewAI(llm.NewOpenAIProvider(cfg.LLMConfig()), cfg.AI.Temperature, cfg.AI.MaxTokens)
	return notes.NewFallback(ai,
		notes.WithLogger(logger),
		notes.WithFallbackHook(func(error) { metrics.RecordFallback("synthesize") }),
	)
}

// NewSender returns the Brevo sender, or a logging sender when no key is set.
func NewSender(cfg *config.Config, logger logging.Logger) email.Sender {
	if cfg.Email.APIKey == "" {
		logger.Info("No email API key configured, emails will be logged only")
		return email.NewLogSender(logger)
	}
	return email.NewBrevoSender(cfg.EmailConfig(), logger)
}

// NewCapture builds the playwright and ffmpeg backed media capture.
func NewCapture(cfg *config.Config, logger logging.Logger) attendance.MediaCapture {
	launcher := capture.NewPlaywrightLauncher(cfg.BrowserOptions())
	recorder := capture.NewFFmpegRecorder(cfg.Capture.FFmpegPath, cfg.Capture.AudioFormat, cfg.Capture.AudioSource)
	transcoder := capture.NewFFmpegTranscoder(cfg.Capture.FFmpegPath)
	opts := []capture.Option{capture.WithLogger(logger)}
	if cfg.Capture.IsolateAudio {
		opts = append(opts, capture.WithAudioSinks(capture.NewPulseSinks(cfg.Capture.PactlPath)))
	} else if cfg.Scheduler.MaxConcurrent > 1 {
		logger.Warn("Audio isolation is off, attending one meeting at a time",
			logging.F("audio_source", cfg.Capture.AudioSource),
			logging.F("max_concurrent", cfg.Scheduler.MaxConcurrent))
	}
	c := capture.New(cfg.CaptureConfig(), launcher, recorder, transcoder, opts...)
	return attendance.NewBrowserCapture(c)
}

// NewApp wires the store, collaborators, orchestrator and reminder scheduler.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	logger := NewLogger(cfg)
	ResolveSecrets(cfg, credentials.NewResolver(), logger)

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: prometheus.NewRegistry(),
		closers:  []func() error{store.Close},
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewPipelineMetrics(app.Registry)

	if ps, ok := store.(interface{ PoolStats() db.StatsFunc }); ok {
		if _, err := db.RegisterPoolStatsCollector(app.Registry, ps.PoolStats(), "notetaker", cfg.Store.Driver); err != nil {
			logger.Warn("Could not register pool metrics", logging.Err(err))
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Redis.Addr != "" {
		rp, err := events.Connect(ctx, cfg.EventsConfig(), logger)
		if err != nil {
			logger.Warn("Event publishing disabled", logging.Err(err))
		} else {
			publisher = rp
			app.closers = append(app.closers, rp.Close)
		}
	}

	sender := NewSender(cfg, logger)
	resolver := meetings.NewStoreContactResolver(store)

	var media attendance.MediaCapture
	if opts.Capture {
		media = NewCapture(cfg, logger)
	}

	app.Orchestrator = attendance.New(cfg.AttendanceConfig(), store, media,
		NewTranscriber(cfg, logger),
		NewSynthesizer(cfg, logger, app.Metrics),
		attendance.WithLogger(logger),
		attendance.WithMetrics(app.Metrics),
		attendance.WithTracer(observability.NewTracer()),
		attendance.WithPublisher(publisher),
		attendance.WithNotifier(resolver, sender),
	)

	remCfg, err := cfg.ReminderConfig()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Reminders = reminders.New(remCfg, store, resolver, sender,
		reminders.WithLogger(logger),
		reminders.WithMetrics(app.Metrics),
	)
	return app, nil
}
