package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one song that started playing.
type Entry struct {
	GuildID   string
	SessionID string
	Title     string
	URL       string
	StartedAt time.Time
}

func (e Entry) logAttrs() []any {
	return []any{
		"guildID", e.GuildID,
		"sessionID", e.SessionID,
		"title", e.Title,
		"url", e.URL,
		"startedAt", e.StartedAt.Format(time.RFC3339),
	}
}

type Recorder interface {
	Record(ctx context.Context, entries ...Entry) error
}

// LogRecorder writes entries to the default logger.
type LogRecorder struct{}

func (r *LogRecorder) Record(ctx context.Context, entries ...Entry) error {
	for _, entry := range entries {
		slog.InfoContext(ctx, "Recorded play", entry.logAttrs()...)
	}
	return nil
}

var _ Recorder = (*LogRecorder)(nil)

// RedisStreamRecorder appends entries to a capped Redis stream.
type RedisStreamRecorder struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamRecorder(client *redis.Client, stream string, maxLen int64) *RedisStreamRecorder {
	return &RedisStreamRecorder{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStreamRecorder) Record(ctx context.Context, entries ...Entry) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: r.stream,
				MaxLen: r.maxLen,
				Approx: true,
				Values: map[string]any{
					"guildID":   entry.GuildID,
					"sessionID": entry.SessionID,
					"title":     entry.Title,
					"url":       entry.URL,
					"startedAt": entry.StartedAt.Format(time.RFC3339),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", r.stream, err)
	}
	return nil
}

// Recent returns up to count entries, newest first.
func (r *RedisStreamRecorder) Recent(ctx context.Context, count int64) ([]Entry, error) {
	messages, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.stream, err)
	}

	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		entry := Entry{
			GuildID:   stringValue(msg.Values, "guildID"),
			SessionID: stringValue(msg.Values, "sessionID"),
			Title:     stringValue(msg.Values, "title"),
			URL:       stringValue(msg.Values, "url"),
		}
		if startedAt, err := time.Parse(time.RFC3339, stringValue(msg.Values, "startedAt")); err == nil {
			entry.StartedAt = startedAt
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var _ Recorder = (*RedisStreamRecorder)(nil)

func stringValue(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}
