// Package config provides configuration management for the notetaker service.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	// Reminder timezones must resolve in minimal containers.
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/notetaker/pkg/attendance"
	"github.com/otherjamesbrown/notetaker/pkg/capture"
	"github.com/otherjamesbrown/notetaker/pkg/db"
	"github.com/otherjamesbrown/notetaker/pkg/email"
	"github.com/otherjamesbrown/notetaker/pkg/events"
	"github.com/otherjamesbrown/notetaker/pkg/llm"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/reminders"
	"github.com/otherjamesbrown/notetaker/pkg/transcription"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Default configuration values.
const (
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".notetaker"
	DefaultConfigFile   = "config.yaml"
	DefaultSQLiteFile   = "notetaker.db"
	DefaultMetricsAddr  = ":9090"
)

// StoreConfig selects and configures the meeting store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN, when set, overrides the discrete postgres fields.
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	// Password is resolved from the environment or keyring, never the file.
	Password   string `yaml:"-"`
	SSLMode    string `yaml:"sslmode"`
	MaxConns   int32  `yaml:"max_conns"`
	SQLitePath string `yaml:"sqlite_path"`
}

// SchedulerConfig drives the periodic jobs run by serve.
type SchedulerConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	JoinLead         time.Duration `yaml:"join_lead"`
	JoinGrace        time.Duration `yaml:"join_grace"`
	StuckMargin      time.Duration `yaml:"stuck_margin"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
	PersistAttempts  int           `yaml:"persist_attempts"`
	NotesBaseURL     string        `yaml:"notes_base_url"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// ReminderConfig sets the reminder lookahead window.
type ReminderConfig struct {
	LookaheadMin time.Duration `yaml:"lookahead_min"`
	LookaheadMax time.Duration `yaml:"lookahead_max"`
	// Timezone is an IANA name used when formatting meeting times.
	Timezone string `yaml:"timezone"`
}

// CaptureConfig configures the browser agent and audio recorder.
type CaptureConfig struct {
	Headless        bool          `yaml:"headless"`
	BrowserArgs     []string      `yaml:"browser_args,omitempty"`
	RecordingsDir   string        `yaml:"recordings_dir"`
	FFmpegPath      string        `yaml:"ffmpeg_path"`
	AudioFormat     string        `yaml:"audio_format"`
	// AudioSource is recorded when IsolateAudio is off. Every browser on the
	// host plays into it, so it limits attendance to one meeting at a time.
	AudioSource     string        `yaml:"audio_source"`
	// IsolateAudio gives each agent its own PulseAudio null sink.
	IsolateAudio    bool          `yaml:"isolate_audio"`
	PactlPath       string        `yaml:"pactl_path"`
	JoinTimeout     time.Duration `yaml:"join_timeout"`
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
	WatchdogMargin  time.Duration `yaml:"watchdog_margin"`
	DisplayName     string        `yaml:"display_name"`
}

// TranscriptionConfig configures the speech-to-text service.
type TranscriptionConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	TargetLanguage string        `yaml:"target_language"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// AIConfig configures the chat-completion service used for notes and translation.
type AIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// APIKey is shared with transcription; resolved by the credentials package.
	APIKey string `yaml:"-"`
}

// EmailConfig configures outbound email.
type EmailConfig struct {
	BaseURL     string        `yaml:"base_url"`
	SenderName  string        `yaml:"sender_name"`
	SenderEmail string        `yaml:"sender_email"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKey      string        `yaml:"-"`
}

// RedisConfig configures status event publishing. Publishing is off when Addr is empty.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
	Password      string `yaml:"-"`
}

// MetricsConfig configures the serve HTTP listener.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config represents the notetaker configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Reminders     ReminderConfig      `yaml:"reminders"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	AI            AIConfig            `yaml:"ai"`
	Email         EmailConfig         `yaml:"email"`
	Redis         RedisConfig         `yaml:"redis"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`

	// OutputFormat is the default output format for CLI results.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	pg := db.DefaultConfig()
	att := attendance.DefaultConfig()
	rem := reminders.DefaultConfig()
	capt := capture.DefaultConfig()
	ai := llm.DefaultConfig()
	mail := email.DefaultConfig()
	retry := transcription.DefaultRetryPolicy()

	return &Config{
		Store: StoreConfig{
			Driver:   DriverSQLite,
			Host:     pg.Host,
			Port:     pg.Port,
			Database: pg.Database,
			User:     pg.User,
			SSLMode:  pg.SSLMode,
			MaxConns: pg.MaxConns,
		},
		Scheduler: SchedulerConfig{
			TickInterval:     5 * time.Minute,
			ReminderInterval: time.Minute,
			JoinLead:         att.JoinLead,
			JoinGrace:        att.JoinGrace,
			StuckMargin:      att.StuckMargin,
			MaxConcurrent:    att.MaxConcurrent,
			PersistAttempts:  att.PersistAttempts,
			ShutdownTimeout:  30 * time.Second,
		},
		Reminders: ReminderConfig{
			LookaheadMin: rem.LookaheadMin,
			LookaheadMax: rem.LookaheadMax,
			Timezone:     "UTC",
		},
		Capture: CaptureConfig{
			Headless:        true,
			RecordingsDir:   capt.RecordingsDir,
			FFmpegPath:      "ffmpeg",
			AudioFormat:     "pulse",
			AudioSource:     "default",
			IsolateAudio:    true,
			PactlPath:       "pactl",
			JoinTimeout:     capt.JoinTimeout,
			StrategyTimeout: capt.StrategyTimeout,
			WatchdogMargin:  capt.WatchdogMargin,
			DisplayName:     capt.DisplayName,
		},
		Transcription: TranscriptionConfig{
			BaseURL:        ai.BaseURL,
			Model:          "whisper-1",
			TargetLanguage: "en",
			Timeout:        5 * time.Minute,
			MaxRetries:     retry.MaxRetries,
		},
		AI: AIConfig{
			BaseURL:     ai.BaseURL,
			Model:       ai.Model,
			Temperature: ai.Temperature,
			MaxTokens:   ai.MaxTokens,
			Timeout:     ai.Timeout,
		},
		Email: EmailConfig{
			BaseURL:     mail.BaseURL,
			SenderName:  mail.SenderName,
			SenderEmail: mail.SenderEmail,
			Timeout:     mail.Timeout,
		},
		Redis: RedisConfig{
			ChannelPrefix: events.DefaultChannelPrefix,
		},
		Metrics: MetricsConfig{
			ListenAddr: DefaultMetricsAddr,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		OutputFormat: DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $NOTETAKER_CONFIG_DIR if set, otherwise ~/.notetaker
func ConfigDir() (string, error) {
	if dir := os.Getenv("NOTETAKER_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads configuration from the default file location and environment variables.
// Priority order (highest to lowest):
// 1. Environment variables (NOTETAKER_*)
// 2. Configuration file (~/.notetaker/config.yaml)
// 3. Default values
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom is LoadConfig with an explicit file path. A missing file is not an error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = filepath.Join(filepath.Dir(path), DefaultSQLiteFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file keep their defaults.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Capture.RecordingsDir != "" {
		dir, err := ExpandPath(cfg.Capture.RecordingsDir)
		if err != nil {
			return fmt.Errorf("expanding recordings_dir: %w", err)
		}
		cfg.Capture.RecordingsDir = dir
	}
	if cfg.Store.SQLitePath != "" {
		p, err := ExpandPath(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("expanding sqlite_path: %w", err)
		}
		cfg.Store.SQLitePath = p
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("NOTETAKER_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("NOTETAKER_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	applyDBEnv(&cfg.Store)

	if err := envDuration("NOTETAKER_TICK_INTERVAL", &cfg.Scheduler.TickInterval); err != nil {
		return err
	}
	if err := envDuration("NOTETAKER_REMINDER_INTERVAL", &cfg.Scheduler.ReminderInterval); err != nil {
		return err
	}
	if err := envInt("NOTETAKER_MAX_CONCURRENT", &cfg.Scheduler.MaxConcurrent); err != nil {
		return err
	}
	if v := os.Getenv("NOTETAKER_NOTES_BASE_URL"); v != "" {
		cfg.Scheduler.NotesBaseURL = v
	}
	if v := os.Getenv("NOTETAKER_TIMEZONE"); v != "" {
		cfg.Reminders.Timezone = v
	}

	if err := envBool("NOTETAKER_HEADLESS", &cfg.Capture.Headless); err != nil {
		return err
	}
	if v := os.Getenv("NOTETAKER_RECORDINGS_DIR"); v != "" {
		cfg.Capture.RecordingsDir = v
	}
	if v := os.Getenv("NOTETAKER_FFMPEG_PATH"); v != "" {
		cfg.Capture.FFmpegPath = v
	}
	if v := os.Getenv("NOTETAKER_AUDIO_SOURCE"); v != "" {
		cfg.Capture.AudioSource = v
	}
	if err := envBool("NOTETAKER_ISOLATE_AUDIO", &cfg.Capture.IsolateAudio); err != nil {
		return err
	}

	if v := os.Getenv("NOTETAKER_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
		cfg.Transcription.BaseURL = v
	}
	if v := os.Getenv("NOTETAKER_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("NOTETAKER_TRANSCRIPTION_MODEL"); v != "" {
		cfg.Transcription.Model = v
	}

	if v := os.Getenv("NOTETAKER_EMAIL_SENDER"); v != "" {
		cfg.Email.SenderEmail = v
	}
	if v := os.Getenv("NOTETAKER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NOTETAKER_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}

	if v := os.Getenv("NOTETAKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if err := envBool("NOTETAKER_LOG_JSON", &cfg.Logging.JSON); err != nil {
		return err
	}
	if v := os.Getenv("NOTETAKER_OUTPUT"); v != "" {
		cfg.OutputFormat = OutputFormat(strings.ToLower(v))
	}
	if v := os.Getenv("NOTETAKER_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.ToLower(v) == "true"
	}
	return nil
}

// applyDBEnv runs the NOTETAKER_DB_* overlay from the db package over the store section.
func applyDBEnv(s *StoreConfig) {
	pg := s.postgres()
	pg.ApplyEnv()
	s.DSN = pg.DSN
	s.Host = pg.Host
	s.Port = pg.Port
	s.Database = pg.Database
	s.User = pg.User
	s.Password = pg.Password
	s.SSLMode = pg.SSLMode
	s.MaxConns = pg.MaxConns
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if err := c.Store.postgres().Validate(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	default:
		return fmt.Errorf("unknown store driver %q (expected postgres or sqlite)", c.Store.Driver)
	}

	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick_interval must be positive")
	}
	if c.Scheduler.ReminderInterval <= 0 {
		return fmt.Errorf("scheduler reminder_interval must be positive")
	}
	if c.Scheduler.JoinLead < 0 || c.Scheduler.JoinGrace < 0 {
		return fmt.Errorf("scheduler join window must not be negative")
	}
	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler max_concurrent must be at least 1")
	}

	if _, err := c.ReminderConfig(); err != nil {
		return err
	}
	if c.Capture.JoinTimeout <= 0 {
		return fmt.Errorf("capture join_timeout must be positive")
	}
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %s (must be text, json, or yaml)", c.OutputFormat)
	}
	switch logging.Level(c.Logging.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

func (s StoreConfig) postgres() *db.Config {
	pg := db.DefaultConfig()
	pg.DSN = s.DSN
	pg.Host = s.Host
	pg.Port = s.Port
	pg.Database = s.Database
	pg.User = s.User
	pg.Password = s.Password
	pg.SSLMode = s.SSLMode
	if s.MaxConns > 0 {
		pg.MaxConns = s.MaxConns
	}
	return pg
}

// PostgresConfig returns the connection settings for the postgres store.
func (c *Config) PostgresConfig() *db.Config {
	return c.Store.postgres()
}

// AttendanceConfig returns the orchestrator settings. Without audio
// isolation only one meeting is attended at a time.
func (c *Config) AttendanceConfig() attendance.Config {
	cfg := attendance.DefaultConfig()
	cfg.JoinLead = c.Scheduler.JoinLead
	cfg.JoinGrace = c.Scheduler.JoinGrace
	cfg.StuckMargin = c.Scheduler.StuckMargin
	cfg.MaxConcurrent = c.EffectiveMaxConcurrent()
	if c.Scheduler.PersistAttempts > 0 {
		cfg.PersistAttempts = c.Scheduler.PersistAttempts
	}
	cfg.NotesBaseURL = c.Scheduler.NotesBaseURL
	return cfg
}

// EffectiveMaxConcurrent is the capture limit after accounting for a shared
// audio source.
func (c *Config) EffectiveMaxConcurrent() int {
	if !c.Capture.IsolateAudio && c.Scheduler.MaxConcurrent > 1 {
		return 1
	}
	return c.Scheduler.MaxConcurrent
}

// ReminderConfig returns the reminder settings with the timezone resolved.
func (c *Config) ReminderConfig() (reminders.Config, error) {
	cfg := reminders.Config{
		LookaheadMin: c.Reminders.LookaheadMin,
		LookaheadMax: c.Reminders.LookaheadMax,
	}
	if c.Reminders.Timezone != "" {
		loc, err := time.LoadLocation(c.Reminders.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("reminders timezone: %w", err)
		}
		cfg.Location = loc
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CaptureConfig returns the capture settings with the default join strategies.
func (c *Config) CaptureConfig() capture.Config {
	cfg := capture.DefaultConfig()
	cfg.RecordingsDir = c.Capture.RecordingsDir
	cfg.JoinTimeout = c.Capture.JoinTimeout
	if c.Capture.StrategyTimeout > 0 {
		cfg.StrategyTimeout = c.Capture.StrategyTimeout
	}
	cfg.WatchdogMargin = c.Capture.WatchdogMargin
	if c.Capture.DisplayName != "" {
		cfg.DisplayName = c.Capture.DisplayName
	}
	return cfg
}

// BrowserOptions returns the playwright launch options.
func (c *Config) BrowserOptions() capture.BrowserOptions {
	return capture.BrowserOptions{
		Headless: c.Capture.Headless,
		Args:     c.Capture.BrowserArgs,
	}
}

// LLMConfig returns the chat-completion client settings.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		BaseURL:     c.AI.BaseURL,
		APIKey:      c.AI.APIKey,
		Model:       c.AI.Model,
		Temperature: c.AI.Temperature,
		MaxTokens:   c.AI.MaxTokens,
		Timeout:     c.AI.Timeout,
	}
}

// SpeechConfig returns the speech-to-text client settings. It shares the AI key.
func (c *Config) SpeechConfig() llm.Config {
	return llm.Config{
		BaseURL: c.Transcription.BaseURL,
		APIKey:  c.AI.APIKey,
		Model:   c.Transcription.Model,
		Timeout: c.Transcription.Timeout,
	}
}

// RetryPolicy returns the transcription retry policy.
func (c *Config) RetryPolicy() transcription.RetryPolicy {
	p := transcription.DefaultRetryPolicy()
	if c.Transcription.MaxRetries >= 0 {
		p.MaxRetries = c.Transcription.MaxRetries
	}
	return p
}

// EmailConfig returns the sender settings.
func (c *Config) EmailConfig() email.Config {
	return email.Config{
		BaseURL:     c.Email.BaseURL,
		APIKey:      c.Email.APIKey,
		SenderName:  c.Email.SenderName,
		SenderEmail: c.Email.SenderEmail,
		Timeout:     c.Email.Timeout,
	}
}

// EventsConfig returns the redis publisher settings.
func (c *Config) EventsConfig() events.Config {
	return events.Config{
		Addr:          c.Redis.Addr,
		Password:      c.Redis.Password,
		DB:            c.Redis.DB,
		ChannelPrefix: c.Redis.ChannelPrefix,
	}
}

// LoggingConfig returns the logger settings. Debug forces the debug level.
func (c *Config) LoggingConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.Level(c.Logging.Level)
	cfg.JSONFormat = c.Logging.JSON
	if c.Debug {
		cfg.Level = logging.LevelDebug
	}
	return cfg
}

// SaveConfig saves the configuration to the default file location.
func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, path[1:]), nil
}
