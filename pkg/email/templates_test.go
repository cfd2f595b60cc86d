package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

func TestReminderMessage(t *testing.T) {
	m := meetings.NewMeeting("Calculus <101>", "https://meet.example.com/abc", time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), 45)

	msg, err := ReminderMessage(Address{Email: "ana@example.com", Name: "Ana"}, m, nil)
	require.NoError(t, err)

	assert.Equal(t, "Reminder: Calculus <101> starts soon", msg.Subject)
	assert.Equal(t, "ana@example.com", msg.To.Email)

	assert.Contains(t, msg.Text, "Hello Ana!")
	assert.Contains(t, msg.Text, "Meeting: Calculus <101>")
	assert.Contains(t, msg.Text, "Date: Monday, March 2, 2026")
	assert.Contains(t, msg.Text, "Time: 02:30 PM")
	assert.Contains(t, msg.Text, "Duration: 45 minutes")
	assert.Contains(t, msg.Text, "Join URL: https://meet.example.com/abc")

	assert.Contains(t, msg.HTML, "Calculus &lt;101&gt;", "title is escaped in html")
	assert.Contains(t, msg.HTML, `href="https://meet.example.com/abc"`)
	assert.Contains(t, msg.HTML, "AI assistant will join")
}

func TestReminderMessage_Location(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	m := meetings.NewMeeting("Physics", "https://x", time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), 0)

	msg, err := ReminderMessage(Address{Email: "a@b.c"}, m, loc)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Date: Tuesday, March 3, 2026")
	assert.Contains(t, msg.Text, "Time: 04:30 AM")
	assert.Contains(t, msg.Text, "Hello a@b.c!")
}

func TestNotesReadyMessage(t *testing.T) {
	m := meetings.NewMeeting("Calculus", "https://x", time.Now(), 60)
	note := &meetings.Note{
		Summary:     "Derivatives.",
		KeyPoints:   []string{"Chain rule"},
		ActionItems: []string{"Exercises 1-10"},
	}

	msg, err := NotesReadyMessage(Address{Email: "a@b.c", Name: "Ana"}, m, note, "https://app.example.com/notes/1")
	require.NoError(t, err)

	assert.Equal(t, "Notes ready: Calculus", msg.Subject)
	assert.Contains(t, msg.Text, "Your notes for Calculus are ready.")
	assert.Contains(t, msg.Text, "- Chain rule")
	assert.Contains(t, msg.Text, "- Exercises 1-10")
	assert.Contains(t, msg.Text, "View your notes: https://app.example.com/notes/1")
	assert.Contains(t, msg.HTML, "<li>Chain rule</li>")
}

func TestNotesReadyMessage_NoNote(t *testing.T) {
	m := meetings.NewMeeting("Calculus", "https://x", time.Now(), 60)

	msg, err := NotesReadyMessage(Address{Email: "a@b.c"}, m, nil, "")
	require.NoError(t, err)
	assert.NotContains(t, msg.Text, "Key points")
	assert.NotContains(t, msg.HTML, "View Your Notes")
}
