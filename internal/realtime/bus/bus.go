package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

const DefaultChannel = "engagement.celebrations"

// Message is what realtime clients receive after an event commits.
type Message struct {
	UserID       uuid.UUID           `json:"user_id"`
	EventID      uuid.UUID           `json:"event_id"`
	EventType    string              `json:"event_type"`
	Level        int                 `json:"level"`
	Experience   int                 `json:"experience"`
	Celebrations []types.Celebration `json:"celebrations"`
	PublishedAt  time.Time           `json:"published_at"`
}

type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, onMsg func(Message)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     redis.UniversalClient
	channel string
}

func NewRedisBus(log *logger.Logger, rdb redis.UniversalClient, channel string) (Bus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ch := strings.TrimSpace(channel)
	if ch == "" {
		ch = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &redisBus{log: log.With("service", "CelebrationBus"), rdb: rdb, channel: ch}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg Message) error {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards decoded messages to onMsg until ctx ends.
func (b *redisBus) Subscribe(ctx context.Context, onMsg func(Message)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad celebration payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error { return nil }

// Nop drops every message. Used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error         { return nil }
func (Nop) Subscribe(context.Context, func(Message)) error { return nil }
func (Nop) Close() error                                   { return nil }
