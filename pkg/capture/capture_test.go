package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
)

type harness struct {
	capture  *Capture
	page     *fakePage
	browser  *fakeBrowser
	recorder *fakeRecorder
	dir      string
}

func newHarness(t *testing.T, page *fakePage, cfg Config) *harness {
	t.Helper()
	h := &harness{
		page:     page,
		browser:  &fakeBrowser{page: page},
		recorder: &fakeRecorder{content: "opus-bytes"},
		dir:      t.TempDir(),
	}
	cfg.RecordingsDir = h.dir
	h.capture = New(cfg, &fakeLauncher{browser: h.browser}, h.recorder, &fakeTranscoder{})
	return h
}

func TestCapture_FullLifecycle(t *testing.T) {
	page := newFakePage(`button:has-text("Join now")`, `[aria-label*="Turn off microphone"]`, NameInputSelector)
	h := newHarness(t, page, Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://meet.example.com/abc", time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.capture.Join(ctx, agent))
	assert.Equal(t, "join-now", agent.JoinStrategy())
	assert.True(t, page.clicked(`[aria-label*="Turn off microphone"]`))
	assert.Equal(t, "AI Virtual Student", page.filled[NameInputSelector])

	src, err := h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^m-1-\d+\.webm$`), filepath.Base(src))
	assert.Equal(t, h.dir, filepath.Dir(src))

	path, err := h.capture.StopRecording(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, ".mp3", filepath.Ext(path))
	assert.FileExists(t, path)
	assert.NoFileExists(t, src, "source removed after transcode")

	again, err := h.capture.StopRecording(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	h.capture.Leave(ctx, agent)
	assert.True(t, page.clicked(LeaveSelector))
	assert.Equal(t, 1, page.closed)
	assert.Equal(t, 1, h.browser.closed)
}

func TestCapture_LeaveIsIdempotent(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	_, err = h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.capture.Leave(ctx, agent)
		h.capture.Leave(ctx, agent)
	})
	assert.Equal(t, 1, h.browser.closed)
	assert.Equal(t, 1, h.recorder.last.stopCount())

	select {
	case <-agent.Done():
	default:
		t.Fatal("agent should be done after leave")
	}
}

func TestCapture_LeaveNilAgent(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	assert.NotPanics(t, func() { h.capture.Leave(context.Background(), nil) })
}

func TestCapture_LeaveAfterJoinFailure(t *testing.T) {
	page := newFakePage()
	page.gotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	h := newHarness(t, page, Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)

	err = h.capture.Join(ctx, agent)
	require.Error(t, err)
	assert.True(t, nterrors.IsJoinFailed(err))
	assert.True(t, nterrors.IsErrorFatal(err))

	h.capture.Leave(ctx, agent)
	h.capture.Leave(ctx, agent)
	assert.False(t, page.clicked(LeaveSelector), "never joined, so no leave click")
	assert.Equal(t, 1, h.browser.closed)
}

func TestCapture_LaunchFailure(t *testing.T) {
	c := New(Config{RecordingsDir: t.TempDir()}, &fakeLauncher{err: errors.New("no chromium")}, &fakeRecorder{}, nil)

	_, err := c.Launch(context.Background(), "m-1", "https://x", time.Hour)
	require.Error(t, err)
	assert.Equal(t, nterrors.ErrLaunchFailed, nterrors.CodeOf(err))
	assert.True(t, nterrors.IsJoinFailed(err))
}

func TestCapture_JoinTimeout(t *testing.T) {
	page := newFakePage()
	page.gotoDelay = 200 * time.Millisecond
	h := newHarness(t, page, Config{JoinTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)

	start := time.Now()
	err = h.capture.Join(ctx, agent)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "join must be bounded")
	assert.True(t, nterrors.IsJoinFailed(err))
	assert.Contains(t, err.Error(), "timed out")
	h.capture.Leave(ctx, agent)
}

func TestCapture_JoinFallsBackToKeypress(t *testing.T) {
	page := newFakePage()
	h := newHarness(t, page, Config{StrategyTimeout: time.Millisecond})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.capture.Join(ctx, agent))

	assert.Equal(t, "enter-key", agent.JoinStrategy())
	assert.Equal(t, []string{"Enter"}, page.pressed)
}

func TestCapture_JoinAllStrategiesFail(t *testing.T) {
	page := newFakePage()
	page.pressErr = errors.New("page crashed")
	h := newHarness(t, page, Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)

	err = h.capture.Join(ctx, agent)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoJoinControl)
	assert.True(t, nterrors.IsJoinFailed(err))
}

func TestCapture_WatchdogStopsRecording(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)

	select {
	case <-agent.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop the recording")
	}
	assert.Equal(t, 1, h.recorder.last.stopCount())

	path, err := h.capture.StopRecording(ctx, agent)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, 1, h.recorder.last.stopCount(), "stop is not repeated")
}

func TestCapture_PartialRecordingProceeds(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	h.recorder.stopErr = errors.New("ffmpeg exited: broken pipe")
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	_, err = h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)

	path, err := h.capture.StopRecording(ctx, agent)
	require.Error(t, err)
	assert.Equal(t, nterrors.ErrRecordingIncomplete, nterrors.CodeOf(err))
	assert.False(t, nterrors.IsErrorFatal(err))
	assert.FileExists(t, path, "partial audio is kept")
}

func TestCapture_TranscodeFailureKeepsSource(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{content: "opus"}
	c := New(Config{RecordingsDir: dir}, &fakeLauncher{browser: &fakeBrowser{page: newFakePage()}}, rec,
		&fakeTranscoder{err: errors.New("codec missing")})
	ctx := context.Background()

	agent, err := c.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	src, err := c.StartRecording(ctx, agent)
	require.NoError(t, err)

	path, err := c.StopRecording(ctx, agent)
	require.Error(t, err)
	assert.Equal(t, src, path)
	assert.FileExists(t, src)
}

func TestCapture_EmptyRecording(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	h.recorder.content = ""
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	_, err = h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)

	path, err := h.capture.StopRecording(ctx, agent)
	require.Error(t, err)
	assert.Empty(t, path)
	assert.Equal(t, nterrors.ErrRecordingIncomplete, nterrors.CodeOf(err))
}

func TestCapture_StartAfterLeave(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	h.capture.Leave(ctx, agent)

	_, err = h.capture.StartRecording(ctx, agent)
	require.Error(t, err)
	assert.Error(t, h.capture.Join(ctx, agent))
}

func TestFinalize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.webm")
	dst := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	require.Error(t, finalize(src, dst), "missing destination")
	assert.FileExists(t, src, "source survives a failed transcode")

	require.NoError(t, os.WriteFile(dst, nil, 0o600))
	require.Error(t, finalize(src, dst), "empty destination")
	assert.FileExists(t, src)

	require.NoError(t, os.WriteFile(dst, []byte("mp3"), 0o600))
	require.NoError(t, finalize(src, dst))
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "rec/m-1-5.mp3", ReplaceExt("rec/m-1-5.webm", ".mp3"))
	assert.Equal(t, "noext.mp3", ReplaceExt("noext", ".mp3"))
}

func TestFFmpegRecorder_Args(t *testing.T) {
	r := NewFFmpegRecorder("", "", "")
	args := r.Args("out.webm", "")
	assert.Equal(t, "ffmpeg", r.Binary)
	assert.Contains(t, args, "pulse")
	assert.Contains(t, args, "-vn")
	assert.Contains(t, args, "default")
	assert.Equal(t, "out.webm", args[len(args)-1])

	args = r.Args("out.webm", "notetaker_abc.monitor")
	assert.Contains(t, args, "notetaker_abc.monitor")
	assert.NotContains(t, args, "default")
}

func TestCapture_ConcurrentAgentsRecordPrivateSinks(t *testing.T) {
	page := newFakePage(`button:has-text("Join now")`)
	launcher := &fakeLauncher{browser: &fakeBrowser{page: page}}
	recorder := &fakeRecorder{content: "opus"}
	sinks := &fakeSinks{}
	c := New(Config{RecordingsDir: t.TempDir()}, launcher, recorder, nil, WithAudioSinks(sinks))
	ctx := context.Background()

	first, err := c.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	second, err := c.Launch(ctx, "m-2", "https://y", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, sinks.live())

	_, err = c.StartRecording(ctx, first)
	require.NoError(t, err)
	_, err = c.StartRecording(ctx, second)
	require.NoError(t, err)

	require.Len(t, launcher.envs, 2)
	firstSink := launcher.envs[0]["PULSE_SINK"]
	secondSink := launcher.envs[1]["PULSE_SINK"]
	assert.Equal(t, SinkName(first.ID), firstSink)
	assert.NotEqual(t, firstSink, secondSink)
	assert.Equal(t, []string{firstSink + ".monitor", secondSink + ".monitor"}, recorder.sources)

	c.Leave(ctx, first)
	c.Leave(ctx, first)
	c.Leave(ctx, second)
	assert.Zero(t, sinks.live())
	assert.Equal(t, []string{firstSink, secondSink}, sinks.removed)
}

func TestCapture_SharedSourceWithoutSinks(t *testing.T) {
	h := newHarness(t, newFakePage(), Config{})
	ctx := context.Background()

	agent, err := h.capture.Launch(ctx, "m-1", "https://x", time.Hour)
	require.NoError(t, err)
	_, err = h.capture.StartRecording(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, h.recorder.sources)
	h.capture.Leave(ctx, agent)
}

func TestCapture_LaunchFailureRemovesSink(t *testing.T) {
	sinks := &fakeSinks{}
	c := New(Config{RecordingsDir: t.TempDir()}, &fakeLauncher{err: errors.New("no chromium")}, &fakeRecorder{}, nil, WithAudioSinks(sinks))

	_, err := c.Launch(context.Background(), "m-1", "https://x", time.Hour)
	assert.Equal(t, nterrors.ErrLaunchFailed, nterrors.CodeOf(err))
	assert.Zero(t, sinks.live())
	assert.Len(t, sinks.removed, 1)
}

func TestCapture_SinkFailureAbortsLaunch(t *testing.T) {
	launcher := &fakeLauncher{browser: &fakeBrowser{page: newFakePage()}}
	c := New(Config{RecordingsDir: t.TempDir()}, launcher, &fakeRecorder{}, nil,
		WithAudioSinks(&fakeSinks{createErr: errors.New("connection refused")}))

	_, err := c.Launch(context.Background(), "m-1", "https://x", time.Hour)
	assert.Equal(t, nterrors.ErrLaunchFailed, nterrors.CodeOf(err))
	assert.Empty(t, launcher.envs, "browser never launched")
}

func TestPulseSinks(t *testing.T) {
	var calls [][]string
	p := NewPulseSinks("")
	p.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if args[0] == "load-module" {
			return []byte("536870913\n"), nil
		}
		return nil, nil
	}

	sink, err := p.Create(context.Background(), "notetaker_abc")
	require.NoError(t, err)
	assert.Equal(t, "536870913", sink.Module)
	assert.Equal(t, "notetaker_abc.monitor", sink.Monitor())
	assert.Equal(t, map[string]string{"PULSE_SINK": "notetaker_abc"}, sink.Env())
	require.NoError(t, p.Remove(context.Background(), sink))

	assert.Equal(t, [][]string{
		{"pactl", "load-module", "module-null-sink", "sink_name=notetaker_abc", "sink_properties=device.description=notetaker_abc"},
		{"pactl", "unload-module", "536870913"},
	}, calls)
}

func TestPulseSinks_CreateErrors(t *testing.T) {
	p := NewPulseSinks("pactl")
	p.run = func(context.Context, string, ...string) ([]byte, error) { return []byte("  "), nil }
	_, err := p.Create(context.Background(), "s")
	assert.ErrorContains(t, err, "no module index")

	p.run = func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit status 1: no daemon") }
	_, err = p.Create(context.Background(), "s")
	assert.ErrorContains(t, err, "no daemon")
}

func TestSinkName(t *testing.T) {
	assert.Equal(t, "notetaker_0f8e2a6b1c3d", SinkName("0f8e2a6b-1c3d-4e5f-8a9b-0c1d2e3f4a5b"))
	assert.Equal(t, "notetaker_short", SinkName("short"))
}

func TestLaunchEnv(t *testing.T) {
	env := launchEnv([]string{"PATH=/usr/bin", "PULSE_SINK=old", "EMPTY="}, map[string]string{"PULSE_SINK": "notetaker_abc"})
	assert.Equal(t, map[string]string{"PATH": "/usr/bin", "PULSE_SINK": "notetaker_abc", "EMPTY": ""}, env)
}
