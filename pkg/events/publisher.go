// Package events publishes meeting lifecycle events to Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
)

// Event types. The channel is the configured prefix plus the type.
const (
	TypeMeetingInProgress = "meeting.in_progress"
	TypeMeetingCompleted  = "meeting.completed"
	TypeMeetingFailed     = "meeting.failed"
	TypeNotesReady        = "notes.ready"
)

// DefaultChannelPrefix is prepended to every event type.
const DefaultChannelPrefix = "events."

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "notetaker",
		Version:   "1.0",
	}
}

// MeetingEvent is published on every status change driven by the pipeline.
type MeetingEvent struct {
	BaseEvent

	MeetingID   string          `json:"meeting_id"`
	Title       string          `json:"title"`
	Status      meetings.Status `json:"status"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	UserID      string          `json:"user_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// NotesReadyEvent is published after a Note is persisted.
type NotesReadyEvent struct {
	BaseEvent

	MeetingID   string               `json:"meeting_id"`
	NoteID      string               `json:"note_id"`
	Title       string               `json:"title"`
	QualityTier meetings.QualityTier `json:"quality_tier"`
	KeyPoints   int                  `json:"key_points"`
	ActionItems int                  `json:"action_items"`
}

// Publisher receives pipeline events. Implementations must not block the
// pipeline for long; publish failures are reported but never fatal.
type Publisher interface {
	MeetingStatusChanged(ctx context.Context, m *meetings.Meeting, status meetings.Status, reason string) error
	NotesReady(ctx context.Context, m *meetings.Meeting, n *meetings.Note) error
}

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher publishes events to Redis.
type RedisPublisher struct {
	client redisClient
	prefix string
	logger logging.Logger
}

// Config holds Redis connection configuration.
type Config struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"-"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// NewRedisPublisher creates a new event publisher.
func NewRedisPublisher(client *redis.Client, prefix string, logger logging.Logger) *RedisPublisher {
	return newRedisPublisher(client, prefix, logger)
}

func newRedisPublisher(client redisClient, prefix string, logger logging.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// Connect creates a publisher with a new Redis connection.
func Connect(ctx context.Context, cfg Config, logger logging.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisher(client, cfg.ChannelPrefix, logger), nil
}

// Channel returns the channel an event type is published on.
func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

// MeetingStatusChanged implements Publisher.
func (p *RedisPublisher) MeetingStatusChanged(ctx context.Context, m *meetings.Meeting, status meetings.Status, reason string) error {
	eventType, ok := statusEventType(status)
	if !ok {
		return nil
	}
	return p.publish(ctx, eventType, MeetingEvent{
		BaseEvent:   NewBaseEvent(eventType),
		MeetingID:   m.ID,
		Title:       m.Title,
		Status:      status,
		ScheduledAt: m.ScheduledAt,
		UserID:      m.UserID,
		Reason:      reason,
	})
}

// NotesReady implements Publisher.
func (p *RedisPublisher) NotesReady(ctx context.Context, m *meetings.Meeting, n *meetings.Note) error {
	return p.publish(ctx, TypeNotesReady, NotesReadyEvent{
		BaseEvent:   NewBaseEvent(TypeNotesReady),
		MeetingID:   m.ID,
		NoteID:      n.ID,
		Title:       n.Title,
		QualityTier: n.QualityTier,
		KeyPoints:   len(n.KeyPoints),
		ActionItems: len(n.ActionItems),
	})
}

func statusEventType(s meetings.Status) (string, bool) {
	switch s {
	case meetings.StatusInProgress:
		return TypeMeetingInProgress, true
	case meetings.StatusCompleted:
		return TypeMeetingCompleted, true
	case meetings.StatusFailed:
		return TypeMeetingFailed, true
	}
	return "", false
}

// publish serializes and publishes an event to Redis.
func (p *RedisPublisher) publish(ctx context.Context, eventType string, event interface{}) error {
	channel := p.Channel(eventType)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) MeetingStatusChanged(context.Context, *meetings.Meeting, meetings.Status, string) error {
	return nil
}

func (Nop) NotesReady(context.Context, *meetings.Meeting, *meetings.Note) error { return nil }
