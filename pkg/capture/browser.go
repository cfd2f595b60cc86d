package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page is the subset of browser page automation that join strategies need.
type Page interface {
	Goto(url string, timeout time.Duration) error
	// Click clicks the first element matching selector once it is visible.
	Click(selector string, timeout time.Duration) error
	// ClickAll clicks every currently visible element matching selector and
	// returns how many were clicked.
	ClickAll(selector string) (int, error)
	Fill(selector, value string, timeout time.Duration) error
	Press(key string) error
	Close() error
}

// Browser is a launched, isolated browser process.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}

// Launcher starts browsers. env is added to the browser's inherited
// environment.
type Launcher interface {
	Launch(ctx context.Context, env map[string]string) (Browser, error)
}

// BrowserOptions configures the playwright launcher.
type BrowserOptions struct {
	Headless bool
	Args     []string
	Width    int
	Height   int
}

// DefaultBrowserArgs auto-grant media devices so the permission prompt never
// blocks the join flow; the controls are then switched off in the meeting UI.
var DefaultBrowserArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-blink-features=AutomationControlled",
	"--use-fake-ui-for-media-stream",
	"--use-fake-device-for-media-stream",
	"--autoplay-policy=no-user-gesture-required",
}

// PlaywrightLauncher launches Chromium through playwright.
type PlaywrightLauncher struct {
	opts BrowserOptions
}

// NewPlaywrightLauncher creates a launcher.
func NewPlaywrightLauncher(opts BrowserOptions) *PlaywrightLauncher {
	if len(opts.Args) == 0 {
		opts.Args = DefaultBrowserArgs
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1280, 720
	}
	return &PlaywrightLauncher{opts: opts}
}

// Launch starts the playwright driver and a fresh browser context.
func (l *PlaywrightLauncher) Launch(ctx context.Context, env map[string]string) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args:     l.opts.Args,
	}
	if len(env) > 0 {
		opts.Env = launchEnv(os.Environ(), env)
	}
	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Permissions: []string{"microphone", "camera"},
		Viewport:    &playwright.Size{Width: l.opts.Width, Height: l.opts.Height},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	return &playwrightBrowser{pw: pw, browser: browser, ctx: bctx}, nil
}

// launchEnv overlays extra on base. Playwright replaces the browser's whole
// environment when one is given.
func launchEnv(base []string, extra map[string]string) map[string]string {
	env := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

type playwrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	ctx     playwright.BrowserContext
}

func (b *playwrightBrowser) NewPage() (Page, error) {
	page, err := b.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (b *playwrightBrowser) Close() error {
	return errors.Join(b.ctx.Close(), b.browser.Close(), b.pw.Stop())
}

type playwrightPage struct {
	page playwright.Page
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   millis(timeout),
	})
	return err
}

func (p *playwrightPage) Click(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	})
}

func (p *playwrightPage) ClickAll(selector string) (int, error) {
	items, err := p.page.Locator(selector).All()
	if err != nil {
		return 0, err
	}
	clicked := 0
	for _, item := range items {
		visible, err := item.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := item.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(1000)}); err == nil {
			clicked++
		}
	}
	return clicked, nil
}

func (p *playwrightPage) Fill(selector, value string, timeout time.Duration) error {
	return p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: millis(timeout),
	})
}

func (p *playwrightPage) Press(key string) error {
	return p.page.Keyboard().Press(key)
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
