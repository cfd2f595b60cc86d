package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// AudioSinks hands each agent a private audio output so concurrent captures
// never record each other's meetings.
type AudioSinks interface {
	Create(ctx context.Context, name string) (*Sink, error)
	Remove(ctx context.Context, s *Sink) error
}

// Sink is a private audio output. The browser plays into it and the recorder
// reads its monitor source.
type Sink struct {
	Name string
	// Module is the server's handle for unloading the sink.
	Module string
}

// Monitor returns the capture source carrying everything played into the sink.
func (s *Sink) Monitor() string {
	return s.Name + ".monitor"
}

// Env routes a browser's audio output into the sink.
func (s *Sink) Env() map[string]string {
	return map[string]string{"PULSE_SINK": s.Name}
}

// SinkName derives a PulseAudio-safe sink name for an agent.
func SinkName(agentID string) string {
	id := strings.ReplaceAll(agentID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return "notetaker_" + id
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// PulseSinks manages null sinks through pactl.
type PulseSinks struct {
	Binary string
	run    commandRunner
}

// NewPulseSinks creates a sink manager using the pactl binary.
func NewPulseSinks(binary string) *PulseSinks {
	if binary == "" {
		binary = "pactl"
	}
	return &PulseSinks{Binary: binary, run: runCommand}
}

// Create implements AudioSinks.
func (p *PulseSinks) Create(ctx context.Context, name string) (*Sink, error) {
	out, err := p.run(ctx, p.Binary, "load-module", "module-null-sink",
		"sink_name="+name,
		"sink_properties=device.description="+name)
	if err != nil {
		return nil, fmt.Errorf("create audio sink %s: %w", name, err)
	}
	module := strings.TrimSpace(string(out))
	if module == "" {
		return nil, fmt.Errorf("create audio sink %s: pactl returned no module index", name)
	}
	return &Sink{Name: name, Module: module}, nil
}

// Remove implements AudioSinks.
func (p *PulseSinks) Remove(ctx context.Context, s *Sink) error {
	if s == nil || s.Module == "" {
		return nil
	}
	if _, err := p.run(ctx, p.Binary, "unload-module", s.Module); err != nil {
		return fmt.Errorf("remove audio sink %s: %w", s.Name, err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
