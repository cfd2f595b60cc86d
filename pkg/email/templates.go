package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

// Team signs every message.
const Team = "AI Teaching Assistant Team"

const (
	dateLayout = "Monday, January 2, 2006"
	timeLayout = "03:04 PM"
)

// ReminderSubject returns the subject line for a meeting reminder.
func ReminderSubject(title string) string {
	return fmt.Sprintf("Reminder: %s starts soon", title)
}

// NotesReadySubject returns the subject line for a notes-ready message.
func NotesReadySubject(title string) string {
	return fmt.Sprintf("Notes ready: %s", title)
}

type reminderData struct {
	Name            string
	Title           string
	Date            string
	Time            string
	DurationMinutes int
	JoinURL         string
	Team            string
}

// ReminderMessage renders the reminder for m. Times are shown in loc
// (UTC when nil).
func ReminderMessage(to Address, m *meetings.Meeting, loc *time.Location) (Message, error) {
	if loc == nil {
		loc = time.UTC
	}
	at := m.ScheduledAt.In(loc)
	duration := m.DurationMinutes
	if duration <= 0 {
		duration = meetings.DefaultDurationMinutes
	}
	data := reminderData{
		Name:            displayName(to),
		Title:           m.Title,
		Date:            at.Format(dateLayout),
		Time:            at.Format(timeLayout),
		DurationMinutes: duration,
		JoinURL:         m.JoinURL,
		Team:            Team,
	}
	return render(to, ReminderSubject(m.Title), "reminder", data)
}

type notesReadyData struct {
	Name        string
	Title       string
	Summary     string
	KeyPoints   []string
	ActionItems []string
	NotesURL    string
	Team        string
}

// NotesReadyMessage renders the message sent once notes exist for m.
func NotesReadyMessage(to Address, m *meetings.Meeting, note *meetings.Note, notesURL string) (Message, error) {
	data := notesReadyData{
		Name:     displayName(to),
		Title:    m.Title,
		NotesURL: notesURL,
		Team:     Team,
	}
	if note != nil {
		data.Summary = note.Summary
		data.KeyPoints = note.KeyPoints
		data.ActionItems = note.ActionItems
	}
	return render(to, NotesReadySubject(m.Title), "notes_ready", data)
}

func render(to Address, subject, name string, data any) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: html.String(), Text: text.String()}, nil
}

func displayName(a Address) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
