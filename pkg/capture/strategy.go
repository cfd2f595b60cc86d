package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoJoinControl is returned when every join strategy was exhausted.
var ErrNoJoinControl = errors.New("no join control found")

// JoinStrategy is one way of entering a meeting from its lobby page.
// Strategies are tried in rank order; the first to succeed wins.
type JoinStrategy interface {
	Name() string
	Attempt(page Page, timeout time.Duration) error
}

// ClickStrategy clicks the first visible element matching Selector.
type ClickStrategy struct {
	Label    string
	Selector string
}

func (s ClickStrategy) Name() string { return s.Label }

func (s ClickStrategy) Attempt(page Page, timeout time.Duration) error {
	return page.Click(s.Selector, timeout)
}

// KeyStrategy presses a key, used as the generic "confirm" fallback.
type KeyStrategy struct {
	Label string
	Key   string
}

func (s KeyStrategy) Name() string { return s.Label }

func (s KeyStrategy) Attempt(page Page, _ time.Duration) error {
	return page.Press(s.Key)
}

// DefaultJoinStrategies covers Google Meet and generic lobby pages.
func DefaultJoinStrategies() []JoinStrategy {
	return []JoinStrategy{
		ClickStrategy{Label: "meet-join-button", Selector: `button[jsname="Qx7uuf"]`},
		ClickStrategy{Label: "join-now", Selector: `button:has-text("Join now")`},
		ClickStrategy{Label: "ask-to-join", Selector: `button:has-text("Ask to join")`},
		ClickStrategy{Label: "generic-join", Selector: `[role="button"]:has-text("Join")`},
		KeyStrategy{Label: "enter-key", Key: "Enter"},
	}
}

// MuteSelectors locate camera and microphone controls that are still on.
var MuteSelectors = []string{
	`[aria-label*="Turn off microphone"]`,
	`[aria-label*="Turn off camera"]`,
	`button[aria-label*="Mute"]`,
	`button[aria-label*="Stop Video"]`,
}

// DismissSelectors close interstitial dialogs that hide the join controls.
var DismissSelectors = []string{
	`button:has-text("Got it")`,
	`button:has-text("Dismiss")`,
}

// NameInputSelector is the guest name field shown to signed-out visitors.
const NameInputSelector = `input[aria-label="Your name"]`

// LeaveSelector locates the leave-call control.
const LeaveSelector = `[aria-label*="Leave"]`

// runStrategies tries each strategy in order until one succeeds or ctx ends.
// Each attempt is capped at perAttempt and at the time left in ctx.
func runStrategies(ctx context.Context, page Page, strategies []JoinStrategy, perAttempt time.Duration) (string, error) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		timeout := perAttempt
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < timeout {
				timeout = left
			}
		}
		if err := s.Attempt(page, timeout); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		return s.Name(), nil
	}
	return "", fmt.Errorf("%w: %w", ErrNoJoinControl, errors.Join(errs...))
}
