// Package status publishes session progress to Redis for an operator
// console to watch. It is diagnostic-only: the OTA protocol's correctness
// never depends on it, and a publish failure is logged and swallowed
// rather than surfaced to the session driver. Adapted from
// librescoot-bluetooth-service's pkg/redis client, which used the same
// HSet-plus-Publish pairing to report BLE/battery state.
package status

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/fw-updater/ota-receiver/internal/session"
)

// Redis keys the publisher writes to.
const (
	KeyOTASession = "ota-session"
	ChannelOTA    = "ota-session"
)

// Publisher is implemented by RedisPublisher and NoopPublisher; it
// satisfies session.Publisher.
type Publisher interface {
	Publish(p session.Progress)
}

// RedisClient is the narrow slice of *redis.Client RedisPublisher needs,
// so tests can substitute a fake without a live server.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher reports session.Progress to a Redis hash and pub/sub
// channel, the way pkg/redis/client.go's WriteAndPublishString did for BLE
// state.
type RedisPublisher struct {
	client RedisClient
	ctx    context.Context
	logger *log.Logger
}

// NewRedisPublisher wraps an existing go-redis client. ctx bounds every
// Redis call the publisher makes; a cancelled ctx simply means progress
// reports stop landing, it does not fail the session.
func NewRedisPublisher(ctx context.Context, client RedisClient, logger *log.Logger) *RedisPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisPublisher{client: client, ctx: ctx, logger: logger}
}

// Publish implements session.Publisher. Failures are logged, not
// returned: this side-channel must never become session-fatal.
func (p *RedisPublisher) Publish(progress session.Progress) {
	state := progress.State.String()

	if err := p.client.HSet(p.ctx, KeyOTASession,
		"state", state,
		"total_size", progress.TotalSize,
		"received_size", progress.ReceivedSize,
	).Err(); err != nil {
		p.logger.Printf("status: HSet failed: %v", err)
	}

	msg := fmt.Sprintf("%s:%d/%d", state, progress.ReceivedSize, progress.TotalSize)
	if err := p.client.Publish(p.ctx, ChannelOTA, msg).Err(); err != nil {
		p.logger.Printf("status: publish failed: %v", err)
	}
}

// NoopPublisher discards every progress report; used when no Redis address
// is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(session.Progress) {}
