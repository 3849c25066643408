package replication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisBroadcaster replicates snapshots over a Redis pub/sub channel.
type RedisBroadcaster struct {
	pool    *redis.Pool
	channel string
	logger  *slog.Logger
}

// NewRedisBroadcaster creates a RedisBroadcaster publishing on channel of
// the Redis server at addr.
func NewRedisBroadcaster(addr, channel string, logger *slog.Logger) *RedisBroadcaster {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
	}
	return newRedisBroadcaster(pool, channel, logger)
}

func newRedisBroadcaster(pool *redis.Pool, channel string, logger *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{pool: pool, channel: channel, logger: logger}
}

// Ping checks that the Redis server is reachable.
func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}

	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PUBLISH", b.channel, payload); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until ctx is done. Payloads that fail to
// decode are logged and skipped.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, handle func(Message)) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	psc := redis.PubSubConn{Conn: conn}
	defer psc.Close()

	if err := psc.Subscribe(b.channel); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	for {
		switch v := psc.ReceiveContext(ctx).(type) {
		case redis.Message:
			msg, err := Decode(v.Data)
			if err != nil {
				b.logger.Warn("dropping replication message", slog.String("channel", v.Channel), slog.Any("error", err))
				continue
			}
			handle(msg)
		case redis.Subscription:
			b.logger.Debug("replication subscription changed",
				slog.String("kind", v.Kind),
				slog.String("channel", v.Channel),
				slog.Int("count", v.Count),
			)
		case error:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("replication receive failed: %w", v)
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.pool.Close()
}
