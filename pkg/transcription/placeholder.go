package transcription

import "golang.org/x/text/language"

// PlaceholderText is returned when the speech service cannot be used, so that
// note synthesis always has text to work with.
const PlaceholderText = "Welcome to today's lecture on Advanced Mathematics. " +
	"Today we will cover calculus and its applications. " +
	"The derivative of a function represents the rate of change. " +
	"For homework, please complete exercises 1 through 10 in chapter 5. " +
	"Remember to review the chain rule and integration techniques. " +
	"Office hours are available on Wednesdays from 2 to 4 PM."

// PlaceholderDurationSeconds is the duration reported with PlaceholderText.
const PlaceholderDurationSeconds = 180

// Placeholder returns the deterministic stand-in transcript.
func Placeholder(reason error) *Result {
	return &Result{
		Text:            PlaceholderText,
		OriginalText:    PlaceholderText,
		Language:        language.English,
		DurationSeconds: PlaceholderDurationSeconds,
		Placeholder:     true,
		FallbackReason:  reason,
	}
}
