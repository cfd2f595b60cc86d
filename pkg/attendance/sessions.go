package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/otherjamesbrown/notetaker/pkg/scheduler"
)

// session is one live attendance. Its completion timer fires at the
// meeting's scheduled end.
type session struct {
	meetingID string
	startedAt time.Time
	deadline  time.Time
	timer     scheduler.Timer
	cancel    context.CancelFunc

	due     chan struct{}
	dueOnce sync.Once
}

func newSession(meetingID string, startedAt, deadline time.Time, cancel context.CancelFunc) *session {
	return &session{
		meetingID: meetingID,
		startedAt: startedAt,
		deadline:  deadline,
		cancel:    cancel,
		due:       make(chan struct{}),
	}
}

func (s *session) fire() {
	s.dueOnce.Do(func() { close(s.due) })
}

// SessionInfo describes a live attendance.
type SessionInfo struct {
	MeetingID string    `json:"meeting_id"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

// registry holds live sessions keyed by meeting id.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// add registers s; it fails when the meeting already has a session.
func (r *registry) add(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.meetingID]; ok {
		return false
	}
	r.sessions[s.meetingID] = s
	return true
}

func (r *registry) get(meetingID string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[meetingID]
	return s, ok
}

// remove drops s and stops its timer. A newer session for the same meeting
// is left alone.
func (r *registry) remove(s *session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.meetingID]; ok && cur == s {
		delete(r.sessions, s.meetingID)
	}
	r.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// cancel aborts the session for meetingID, if any.
func (r *registry) cancel(meetingID string) bool {
	s, ok := r.get(meetingID)
	if !ok {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	return true
}

// fireAll ends every session as if its deadline had passed.
func (r *registry) fireAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.fire()
	}
}

func (r *registry) list() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{MeetingID: s.meetingID, StartedAt: s.startedAt, Deadline: s.deadline})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}
