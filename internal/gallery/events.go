package gallery

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel library events are published on.
const Channel = "broadcast"

const (
	EventMemoryAdded   = "memory.added"
	EventMemoryDeleted = "memory.deleted"
	EventTrackAdded    = "track.added"
	EventTrackDeleted  = "track.deleted"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher announces library changes. Publishing is best effort and never
// fails the write that triggered it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

type RedisPublisher struct {
	rdb    *redis.Client
	logger *log.Logger
}

func NewRedisPublisher(rdb *redis.Client, logger *log.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload any) {
	if p == nil || p.rdb == nil {
		return
	}

	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		p.logger.Error("encode event", "type", eventType, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, Channel, string(data)).Err(); err != nil {
		p.logger.Error("publish event", "type", eventType, "err", err)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) {}
