package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"execdash/internal/logger"
	"execdash/internal/snapshot"
)

const metricsTable = "executive_metrics"

// change is the wire payload published on the Redis channel.
type change struct {
	Table string            `json:"table"`
	Event string            `json:"event"`
	New   snapshot.Snapshot `json:"new"`
}

// RedisBus carries snapshot changes between processes over Redis pub/sub.
// Publish is used by the store; StartForwarder relays received changes into
// a local Hub.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and verifies the connection with a ping.
func NewRedisBus(log *logger.Logger, addr, channel string) (*RedisBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = metricsTable + "_changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     log.With("component", "RedisFeedBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, s snapshot.Snapshot) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis feed bus not initialized")
	}
	raw, err := json.Marshal(change{Table: metricsTable, Event: "UPDATE", New: s})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and calls onMsg for every
// snapshot received until ctx is cancelled.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(snapshot.Snapshot)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis feed bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				s, err := decodeChange([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad snapshot payload on feed channel", "error", err)
					continue
				}
				onMsg(s)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func decodeChange(raw []byte) (snapshot.Snapshot, error) {
	var c change
	if err := json.Unmarshal(raw, &c); err != nil {
		return snapshot.Snapshot{}, err
	}
	if c.Table != metricsTable {
		return snapshot.Snapshot{}, fmt.Errorf("unexpected table %q", c.Table)
	}
	return snapshot.Normalize(c.New), nil
}
