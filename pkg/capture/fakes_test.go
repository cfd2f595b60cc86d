package capture

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

type fakePage struct {
	mu        sync.Mutex
	gotoErr   error
	gotoDelay time.Duration
	clickable map[string]bool
	pressErr  error
	clicks    []string
	pressed   []string
	filled    map[string]string
	closed    int
}

func newFakePage(clickable ...string) *fakePage {
	p := &fakePage{clickable: map[string]bool{}, filled: map[string]string{}}
	for _, sel := range clickable {
		p.clickable[sel] = true
	}
	return p
}

func (p *fakePage) Goto(url string, timeout time.Duration) error {
	if p.gotoDelay > 0 {
		time.Sleep(p.gotoDelay)
	}
	return p.gotoErr
}

func (p *fakePage) Click(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clickable[selector] {
		return errors.New("timeout waiting for " + selector)
	}
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) ClickAll(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clickable[selector] {
		return 0, nil
	}
	p.clicks = append(p.clicks, selector)
	return 1, nil
}

func (p *fakePage) Fill(selector, value string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clickable[selector] {
		return errors.New("no field")
	}
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Press(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pressErr != nil {
		return p.pressErr
	}
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) clicked(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clicks {
		if c == selector {
			return true
		}
	}
	return false
}

type fakeBrowser struct {
	page   *fakePage
	mu     sync.Mutex
	closed int
}

func (b *fakeBrowser) NewPage() (Page, error) { return b.page, nil }

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeLauncher struct {
	browser *fakeBrowser
	err     error
	mu      sync.Mutex
	envs    []map[string]string
}

func (l *fakeLauncher) Launch(ctx context.Context, env map[string]string) (Browser, error) {
	l.mu.Lock()
	l.envs = append(l.envs, env)
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

// fakeRecorder writes a file on start; stopping closes Done.
type fakeRecorder struct {
	content string
	stopErr error
	mu      sync.Mutex
	last    *fakeRecording
	sources []string
}

func (r *fakeRecorder) Start(ctx context.Context, path, source string) (Recording, error) {
	if err := os.WriteFile(path, []byte(r.content), 0o600); err != nil {
		return nil, err
	}
	rec := &fakeRecording{done: make(chan struct{}), err: r.stopErr}
	r.mu.Lock()
	r.last = rec
	r.sources = append(r.sources, source)
	r.mu.Unlock()
	return rec, nil
}

// fakeSinks tracks which sinks are loaded.
type fakeSinks struct {
	createErr error
	mu        sync.Mutex
	loaded    map[string]bool
	removed   []string
}

func (f *fakeSinks) Create(_ context.Context, name string) (*Sink, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == nil {
		f.loaded = map[string]bool{}
	}
	f.loaded[name] = true
	return &Sink{Name: name, Module: name + "-module"}, nil
}

func (f *fakeSinks) Remove(_ context.Context, s *Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loaded, s.Name)
	f.removed = append(f.removed, s.Name)
	return nil
}

func (f *fakeSinks) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loaded)
}

type fakeRecording struct {
	done  chan struct{}
	once  sync.Once
	err   error
	mu    sync.Mutex
	stops int
}

func (r *fakeRecording) Stop() error {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
	return r.err
}

func (r *fakeRecording) Done() <-chan struct{} { return r.done }

func (r *fakeRecording) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// fakeTranscoder renames .webm to .mp3 following the same non-loss rule.
type fakeTranscoder struct {
	err error
}

func (t *fakeTranscoder) Transcode(ctx context.Context, src string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	dst := strings.TrimSuffix(src, ".webm") + ".mp3"
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return "", err
	}
	return dst, finalize(src, dst)
}
