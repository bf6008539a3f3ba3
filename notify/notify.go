// Package notify publishes sync outcomes to Redis, for anything downstream
// that wants to react to catalog changes.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/amonks/catalog/logging"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel every message goes to.
const Channel = "catalog.sync"

// A Message is what subscribers see on the channel.
type Message struct {
	Kind    string    `json:"kind"`
	SentAt  time.Time `json:"sentAt"`
	Payload any       `json:"payload"`
}

// A Publisher sends messages to Channel. The zero Publisher, or one made with
// an empty URL, drops everything.
type Publisher struct {
	rdb *redis.Client
	now func() time.Time
}

// New connects to the Redis server at url, like "redis://localhost:6379/0".
// An empty url gives a Publisher that does nothing.
func New(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opt)), nil
}

func NewWithClient(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, now: time.Now}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.rdb != nil
}

// Ping checks the connection. A disabled Publisher is always healthy.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.rdb.Ping(ctx).Err()
}

func (p *Publisher) Publish(ctx context.Context, kind string, payload any) error {
	if !p.Enabled() {
		return nil
	}

	bs, err := json.Marshal(Message{Kind: kind, SentAt: p.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("error encoding %s message: %w", kind, err)
	}
	receivers, err := p.rdb.Publish(ctx, Channel, bs).Result()
	if err != nil {
		return fmt.Errorf("error publishing %s message: %w", kind, err)
	}
	logging.Debug().Str("kind", kind).Int64("receivers", receivers).Msg("published")
	return nil
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.rdb.Close()
}
