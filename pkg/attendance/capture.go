package attendance

import (
	"context"
	"time"

	"github.com/otherjamesbrown/notetaker/pkg/capture"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/transcription"
)

// MediaCapture puts an agent into a meeting and starts recording it.
type MediaCapture interface {
	// Attend launches, joins and starts recording. A returned error means the
	// agent never got into the meeting and has already been released.
	Attend(ctx context.Context, m *meetings.Meeting, duration time.Duration) (Recording, error)
}

// Recording is a running capture for one meeting.
type Recording interface {
	// Done is closed when capture ends on its own.
	Done() <-chan struct{}
	// Stop ends capture and returns whatever audio exists, possibly with a
	// non-fatal error describing why it is incomplete.
	Stop(ctx context.Context) (string, error)
	// Leave releases the agent. It is idempotent.
	Leave(ctx context.Context)
	// JoinStrategy names the strategy that entered the meeting.
	JoinStrategy() string
}

// Transcriber turns audio into text. It never fails.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) *transcription.Result
}

// NewBrowserCapture adapts a capture.Capture to MediaCapture.
func NewBrowserCapture(c *capture.Capture) MediaCapture {
	return &browserCapture{c: c}
}

type browserCapture struct {
	c *capture.Capture
}

func (b *browserCapture) Attend(ctx context.Context, m *meetings.Meeting, duration time.Duration) (Recording, error) {
	agent, err := b.c.Launch(ctx, m.ID, m.JoinURL, duration)
	if err != nil {
		return nil, err
	}
	if err := b.c.Join(ctx, agent); err != nil {
		b.c.Leave(context.WithoutCancel(ctx), agent)
		return nil, err
	}
	// A recorder that cannot start leaves the agent in the meeting; Stop
	// reports the failure and transcription falls back to its placeholder.
	_, startErr := b.c.StartRecording(ctx, agent)
	return &browserRecording{c: b.c, agent: agent, startErr: startErr}, nil
}

type browserRecording struct {
	c        *capture.Capture
	agent    *capture.Agent
	startErr error
}

func (r *browserRecording) Done() <-chan struct{} {
	return r.agent.Done()
}

func (r *browserRecording) Stop(ctx context.Context) (string, error) {
	if r.startErr != nil {
		return "", r.startErr
	}
	return r.c.StopRecording(ctx, r.agent)
}

func (r *browserRecording) Leave(ctx context.Context) {
	r.c.Leave(ctx, r.agent)
}

func (r *browserRecording) JoinStrategy() string {
	return r.agent.JoinStrategy()
}
