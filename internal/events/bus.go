package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lancepay/internal/logger"
)

const TopicWalletChanged = "wallet.changed"

// WalletChanged tells display surfaces to re-render a balance. Delivery is
// at-least-once with no ordering guarantee; consumers re-read the wallet.
type WalletChanged struct {
	UserID int       `json:"user_id"`
	Reason string    `json:"reason"` // deposit, transfer, withdrawal, escrow
	At     time.Time `json:"at"`
}

type Publisher interface {
	PublishWalletChanged(ctx context.Context, event WalletChanged) error
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(redisAddr string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
	}
}

// NewRedisPublisherWithClient is used by tests with a redismock client.
func NewRedisPublisherWithClient(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Failed to marshal event for topic %s: %v", topic, err)
		return err
	}

	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		logger.Errorf("Failed to publish event to %s: %v", topic, err)
		return err
	}

	return nil
}

func (p *RedisPublisher) PublishWalletChanged(ctx context.Context, event WalletChanged) error {
	return p.Publish(ctx, TopicWalletChanged, event)
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// MemoryPublisher collects events in-process. Used in tests and as a
// no-op-safe default when redis is not configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (p *MemoryPublisher) PublishWalletChanged(ctx context.Context, event WalletChanged) error {
	return p.Publish(ctx, TopicWalletChanged, event)
}

func (p *MemoryPublisher) ByTopic(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []PublishedEvent
	for _, e := range p.Events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
