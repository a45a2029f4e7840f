package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/portico/internal/logger"
)

// Invalidator drops a cached validation result by key.
type Invalidator interface {
	Invalidate(key string)
}

type revocation struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// RevocationBus shares logouts between gateway replicas so a credential
// revoked on one replica stops being served from the others' caches.
// Only credential hashes travel on the bus.
type RevocationBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	target     Invalidator
	logger     logger.Logger

	pubsub *redis.PubSub
	stopCh chan struct{}
	done   chan struct{}
}

// NewRevocationBus creates a bus that applies remote revocations to target.
func NewRevocationBus(client *redis.Client, instanceID string, target Invalidator, log logger.Logger) *RevocationBus {
	return &RevocationBus{
		client:     client,
		channel:    RevocationChannel(),
		instanceID: instanceID,
		target:     target,
		logger:     log,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Publish announces that key was revoked on this replica.
func (b *RevocationBus) Publish(ctx context.Context, key string) error {
	payload, err := json.Marshal(revocation{Origin: b.instanceID, Key: key})
	if err != nil {
		return fmt.Errorf("failed to marshal revocation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish revocation: %w", err)
	}
	return nil
}

// Start subscribes and applies revocations until Stop or ctx is done.
// It returns once the subscription is confirmed.
func (b *RevocationBus) Start(ctx context.Context) error {
	b.pubsub = b.client.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		close(b.done)
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	msgs := b.pubsub.Channel()
	go func() {
		defer close(b.done)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.apply(msg.Payload)
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	b.logger.Info("revocation bus subscribed", logger.String("channel", b.channel))
	return nil
}

// Stop unsubscribes and waits for the listener to exit.
func (b *RevocationBus) Stop() {
	close(b.stopCh)
	<-b.done
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
}

func (b *RevocationBus) apply(payload string) {
	var r revocation
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		b.logger.Warn("ignoring malformed revocation", logger.Error(err))
		return
	}
	if r.Key == "" || r.Origin == b.instanceID {
		return
	}
	b.target.Invalidate(r.Key)
	b.logger.Debug("applied remote revocation", logger.String("origin", r.Origin))
}
