package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Recording is an in-flight audio capture.
type Recording interface {
	// Stop asks the capture to finalize its file and waits for it to exit.
	Stop() error
	// Done is closed when the capture process exits for any reason.
	Done() <-chan struct{}
}

// Recorder starts audio captures. An empty source records the recorder's
// configured default input.
type Recorder interface {
	Start(ctx context.Context, path, source string) (Recording, error)
}

// FFmpegRecorder captures the browser's audio output with ffmpeg. Audio is
// written incrementally so a crash leaves a usable partial file.
type FFmpegRecorder struct {
	// Binary is the ffmpeg executable.
	Binary string
	// Format is the ffmpeg input device format, e.g. "pulse".
	Format string
	// Source is the input device used when a capture names none. It is
	// shared by every browser on the host.
	Source string
	// StopGrace is how long Stop waits after SIGINT before killing.
	StopGrace time.Duration
}

// NewFFmpegRecorder creates a recorder with defaults for PulseAudio.
func NewFFmpegRecorder(binary, format, source string) *FFmpegRecorder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if format == "" {
		format = "pulse"
	}
	if source == "" {
		source = "default"
	}
	return &FFmpegRecorder{Binary: binary, Format: format, Source: source, StopGrace: 10 * time.Second}
}

// Args returns the ffmpeg arguments for recording source to path.
func (r *FFmpegRecorder) Args(path, source string) []string {
	if source == "" {
		source = r.Source
	}
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-f", r.Format,
		"-i", source,
		"-vn",
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "libopus",
		"-b:a", "64k",
		"-f", "webm",
		path,
	}
}

// Start launches ffmpeg. The process is not tied to ctx; use Stop to end it.
func (r *FFmpegRecorder) Start(ctx context.Context, path, source string) (Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(r.Binary, r.Args(path, source)...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	rec := &processRecording{cmd: cmd, stderr: stderr, grace: r.StopGrace, done: make(chan struct{})}
	go rec.wait()
	return rec, nil
}

type processRecording struct {
	cmd    *exec.Cmd
	stderr *lockedBuffer
	grace  time.Duration
	done   chan struct{}

	once    sync.Once
	waitErr error
}

func (p *processRecording) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *processRecording) Done() <-chan struct{} { return p.done }

func (p *processRecording) Stop() error {
	var stopErr error
	p.once.Do(func() {
		select {
		case <-p.done:
			stopErr = p.exitError()
			return
		default:
		}

		// ffmpeg finalizes the container on SIGINT.
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			_ = p.cmd.Process.Kill()
		}

		t := time.NewTimer(p.grace)
		defer t.Stop()
		select {
		case <-p.done:
		case <-t.C:
			_ = p.cmd.Process.Kill()
			<-p.done
			stopErr = fmt.Errorf("ffmpeg did not exit within %s, killed", p.grace)
		}
	})
	return stopErr
}

// exitError reports an unexpected exit. Interrupted exits are the normal stop path.
func (p *processRecording) exitError() error {
	var exitErr *exec.ExitError
	if p.waitErr == nil || !errors.As(p.waitErr, &exitErr) {
		return p.waitErr
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() && status.Signal() == syscall.SIGINT {
		return nil
	}
	if exitErr.ExitCode() == 255 {
		return nil
	}
	return fmt.Errorf("ffmpeg exited: %w: %s", p.waitErr, p.stderr.String())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() > 4096 {
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
