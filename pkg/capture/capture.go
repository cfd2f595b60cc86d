// Package capture drives a browser agent into a meeting and records its audio.
//
// A capture runs Launch, Join, StartRecording, StopRecording and finally
// Leave. Leave is safe to call at any point and more than once, so callers
// can defer it right after Launch.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// Config controls capture timing and output.
type Config struct {
	RecordingsDir string
	// JoinTimeout bounds navigation plus every join attempt.
	JoinTimeout time.Duration
	// StrategyTimeout bounds a single join strategy.
	StrategyTimeout time.Duration
	// WatchdogMargin is added to the meeting duration before recording is
	// force-stopped.
	WatchdogMargin time.Duration
	// DisplayName is entered in the guest name field when one is shown.
	DisplayName string
	Strategies  []JoinStrategy
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		RecordingsDir:   "recordings",
		JoinTimeout:     60 * time.Second,
		StrategyTimeout: 5 * time.Second,
		WatchdogMargin:  2 * time.Minute,
		DisplayName:     "AI Virtual Student",
		Strategies:      DefaultJoinStrategies(),
	}
}

// Capture creates and drives meeting agents.
type Capture struct {
	cfg        Config
	launcher   Launcher
	recorder   Recorder
	transcoder Transcoder
	sinks      AudioSinks
	logger     logging.Logger
	now        func() time.Time
}

// Option configures a Capture.
type Option func(*Capture)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Capture) {
		c.logger = l.With(logging.F("component", "media_capture"))
	}
}

// WithAudioSinks gives every agent a private audio sink. Without it all
// agents record the recorder's shared default source.
func WithAudioSinks(s AudioSinks) Option {
	return func(c *Capture) {
		c.sinks = s
	}
}

// New creates a Capture. A nil transcoder keeps the recorded container as is.
func New(cfg Config, launcher Launcher, recorder Recorder, transcoder Transcoder, opts ...Option) *Capture {
	def := DefaultConfig()
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = def.RecordingsDir
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = def.JoinTimeout
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = def.StrategyTimeout
	}
	if cfg.WatchdogMargin < 0 {
		cfg.WatchdogMargin = 0
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = def.Strategies
	}

	c := &Capture{
		cfg:        cfg,
		launcher:   launcher,
		recorder:   recorder,
		transcoder: transcoder,
		logger:     logging.NewNopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Agent is the handle for one browser agent attending one meeting.
type Agent struct {
	ID        string
	MeetingID string
	JoinURL   string
	Duration  time.Duration
	StartedAt time.Time

	logger logging.Logger

	mu           sync.Mutex
	browser      Browser
	page         Page
	sink         *Sink
	joined       bool
	joinStrategy string
	recording    Recording
	audioPath    string
	finalPath    string
	watchdog     *time.Timer
	left         bool

	stopMu   sync.Mutex
	stopOnce sync.Once
	stopErr  error

	ended   chan struct{}
	endOnce sync.Once
}

// Done is closed when recording ends, whether stopped explicitly, by the
// watchdog, or because the capture process exited.
func (a *Agent) Done() <-chan struct{} {
	return a.ended
}

// AudioPath returns the current audio file, or "" before recording starts.
func (a *Agent) AudioPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalPath != "" {
		return a.finalPath
	}
	return a.audioPath
}

// JoinStrategy returns the name of the strategy that entered the meeting.
func (a *Agent) JoinStrategy() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.joinStrategy
}

func (a *Agent) markEnded() {
	a.endOnce.Do(func() { close(a.ended) })
}

// Launch starts an isolated browser for the meeting.
func (c *Capture) Launch(ctx context.Context, meetingID, joinURL string, duration time.Duration) (*Agent, error) {
	a := &Agent{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		JoinURL:   joinURL,
		Duration:  duration,
		StartedAt: c.now(),
		ended:     make(chan struct{}),
	}
	a.logger = c.logger.With(logging.Meeting(meetingID), logging.F("agent_id", a.ID))

	var env map[string]string
	if c.sinks != nil {
		sink, err := c.sinks.Create(ctx, SinkName(a.ID))
		if err != nil {
			return nil, nterrors.New(nterrors.ErrLaunchFailed, nterrors.StageLaunch, err).WithMeeting(meetingID)
		}
		a.sink = sink
		env = sink.Env()
	}

	browser, err := c.launcher.Launch(ctx, env)
	if err != nil {
		c.removeSink(a)
		return nil, nterrors.New(nterrors.ErrLaunchFailed, nterrors.StageLaunch, err).WithMeeting(meetingID)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		c.removeSink(a)
		return nil, nterrors.New(nterrors.ErrLaunchFailed, nterrors.StageLaunch, err).WithMeeting(meetingID)
	}

	a.browser = browser
	a.page = page
	a.logger.Info("Browser agent launched", logging.F("audio_source", a.source()))
	return a, nil
}

// source is the audio input for the agent's recording. Empty means the
// recorder's shared default.
func (a *Agent) source() string {
	if a.sink == nil {
		return ""
	}
	return a.sink.Monitor()
}

func (c *Capture) removeSink(a *Agent) {
	if c.sinks == nil || a.sink == nil {
		return
	}
	// Teardown runs after the caller may have given up on ctx.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sinks.Remove(ctx, a.sink); err != nil {
		a.logger.Warn("Removing audio sink failed", logging.Err(err))
	}
}

// Join navigates to the meeting, switches off camera and microphone and
// enters the meeting. It never blocks longer than the join timeout.
func (c *Capture) Join(ctx context.Context, a *Agent) error {
	a.mu.Lock()
	page, left := a.page, a.left
	a.mu.Unlock()
	if left || page == nil {
		return nterrors.JoinFailed(errors.New("agent is not running")).WithMeeting(a.MeetingID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.JoinTimeout)
	defer cancel()
	start := c.now()

	type result struct {
		strategy string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		name, err := c.join(ctx, a, page)
		done <- result{strategy: name, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return c.joinTimeout(a, start)
			}
			return nterrors.JoinFailed(res.err).WithMeeting(a.MeetingID)
		}
		a.mu.Lock()
		a.joined = true
		a.joinStrategy = res.strategy
		a.mu.Unlock()
		a.logger.Info("Joined meeting", logging.F("strategy", res.strategy))
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return c.joinTimeout(a, start)
		}
		return nterrors.JoinFailed(ctx.Err()).WithMeeting(a.MeetingID)
	}
}

func (c *Capture) joinTimeout(a *Agent, start time.Time) error {
	return &nterrors.PipelineError{
		Code:      nterrors.ErrJoinFailed,
		Stage:     nterrors.StageJoin,
		MeetingID: a.MeetingID,
		Message:   "join timed out",
		Duration:  c.now().Sub(start),
		Timeout:   c.cfg.JoinTimeout,
		Cause:     context.DeadlineExceeded,
	}
}

func (c *Capture) join(ctx context.Context, a *Agent, page Page) (string, error) {
	navTimeout := c.cfg.JoinTimeout
	if deadline, ok := ctx.Deadline(); ok {
		navTimeout = time.Until(deadline)
	}
	if err := page.Goto(a.JoinURL, navTimeout); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Everything before the join click is best-effort.
	if c.cfg.DisplayName != "" {
		if err := page.Fill(NameInputSelector, c.cfg.DisplayName, time.Second); err == nil {
			a.logger.Debug("Entered display name")
		}
	}
	for _, sel := range DismissSelectors {
		_, _ = page.ClickAll(sel)
	}
	muted := 0
	for _, sel := range MuteSelectors {
		n, err := page.ClickAll(sel)
		if err != nil {
			a.logger.Debug("Mute control unavailable", logging.F("selector", sel), logging.Err(err))
			continue
		}
		muted += n
	}
	a.logger.Debug("Disabled local media", logging.F("controls", muted))

	return runStrategies(ctx, page, c.cfg.Strategies, c.cfg.StrategyTimeout)
}

// RecordingPath returns the file a new recording for meetingID is written to.
func (c *Capture) RecordingPath(meetingID string) string {
	return filepath.Join(c.cfg.RecordingsDir, fmt.Sprintf("%s-%d.webm", meetingID, c.now().UnixMilli()))
}

// StartRecording begins audio capture and arms the duration watchdog.
func (c *Capture) StartRecording(ctx context.Context, a *Agent) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.left {
		return "", nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, errors.New("agent already left")).WithMeeting(a.MeetingID)
	}
	if a.recording != nil {
		return a.audioPath, nil
	}

	if err := os.MkdirAll(c.cfg.RecordingsDir, 0o755); err != nil {
		return "", nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, err).WithMeeting(a.MeetingID)
	}
	path := c.RecordingPath(a.MeetingID)
	rec, err := c.recorder.Start(ctx, path, a.source())
	if err != nil {
		return "", nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, err).WithMeeting(a.MeetingID)
	}

	a.recording = rec
	a.audioPath = path
	limit := a.Duration + c.cfg.WatchdogMargin
	a.watchdog = time.AfterFunc(limit, func() {
		a.logger.Warn("Recording watchdog fired", logging.F("limit", limit.String()))
		_ = a.stopCapture()
	})
	go func() {
		<-rec.Done()
		a.markEnded()
	}()

	a.logger.Info("Recording started", logging.F("path", path), logging.F("limit", limit.String()))
	return path, nil
}

// stopCapture ends the recording process once; concurrent callers wait for
// the first to finish.
func (a *Agent) stopCapture() error {
	a.mu.Lock()
	rec, watchdog := a.recording, a.watchdog
	a.mu.Unlock()
	if rec == nil {
		return nil
	}
	a.stopOnce.Do(func() {
		if watchdog != nil {
			watchdog.Stop()
		}
		a.stopErr = rec.Stop()
		a.markEnded()
	})
	return a.stopErr
}

// StopRecording stops capture and transcodes the file. It returns whatever
// audio exists even when the error is non-nil; a capture interrupted midway
// still yields its partial file. Calling it again returns the same path.
func (c *Capture) StopRecording(ctx context.Context, a *Agent) (string, error) {
	a.stopMu.Lock()
	defer a.stopMu.Unlock()

	a.mu.Lock()
	final, src := a.finalPath, a.audioPath
	a.mu.Unlock()
	if final != "" {
		return final, nil
	}
	if src == "" {
		return "", nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, errors.New("recording never started")).WithMeeting(a.MeetingID)
	}

	var incomplete error
	if err := a.stopCapture(); err != nil {
		incomplete = nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, err).WithMeeting(a.MeetingID)
		a.logger.Warn("Recording ended abnormally, keeping partial audio", logging.Err(err))
	}

	info, err := os.Stat(src)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = fmt.Errorf("audio file %s is empty", src)
		}
		return "", nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageRecord, err).WithMeeting(a.MeetingID)
	}

	path := src
	if c.transcoder != nil {
		dst, err := c.transcoder.Transcode(ctx, src)
		if err != nil {
			a.logger.Warn("Transcode failed, keeping original container", logging.Err(err))
			if incomplete == nil {
				incomplete = nterrors.New(nterrors.ErrRecordingIncomplete, nterrors.StageTranscode, err).WithMeeting(a.MeetingID)
			}
		} else {
			path = dst
		}
	}

	a.mu.Lock()
	a.finalPath = path
	a.mu.Unlock()
	a.logger.Info("Recording stopped", logging.F("path", path), logging.F("size_bytes", info.Size()))
	return path, incomplete
}

// Leave stops any recording, leaves the call and tears the browser down.
// It never returns an error and is safe to call repeatedly.
func (c *Capture) Leave(ctx context.Context, a *Agent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.left {
		a.mu.Unlock()
		return
	}
	a.left = true
	page, browser, joined := a.page, a.browser, a.joined
	a.mu.Unlock()

	if err := a.stopCapture(); err != nil {
		a.logger.Warn("Stopping recording during leave failed", logging.Err(err))
	}
	a.markEnded()

	if page != nil {
		if joined {
			if err := page.Click(LeaveSelector, 2*time.Second); err != nil {
				a.logger.Debug("Leave control not clicked", logging.Err(err))
			}
		}
		if err := page.Close(); err != nil {
			a.logger.Debug("Closing page failed", logging.Err(err))
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			a.logger.Warn("Closing browser failed", logging.Err(err))
		}
	}
	c.removeSink(a)
	a.logger.Info("Left meeting")
}
