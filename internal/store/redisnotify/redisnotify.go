// Package redisnotify fans out list-change signals over Redis pub/sub.
package redisnotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/store"
)

type Notifier struct {
	raw    *redis.Client
	prefix string
	log    *zap.Logger
}

var _ store.Notifier = (*Notifier)(nil)

// New parses url, connects and pings.
func New(ctx context.Context, url, prefix string, log *zap.Logger) (*Notifier, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Notifier{raw: raw, prefix: prefix, log: log}, nil
}

// Channel is the pub/sub channel for a list code.
func (n *Notifier) Channel(code string) string {
	if n.prefix == "" {
		return "list:" + code
	}
	return n.prefix + ":list:" + code
}

func (n *Notifier) Publish(ctx context.Context, code string) error {
	if err := n.raw.Publish(ctx, n.Channel(code), "changed").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", code, err)
	}
	return nil
}

// Subscribe coalesces bursts: a pending signal absorbs later ones until read.
func (n *Notifier) Subscribe(ctx context.Context, code string) (<-chan struct{}, error) {
	ps := n.raw.Subscribe(ctx, n.Channel(code))
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		defer n.log.Debug("redis subscription closed", zap.String("list_code", code))
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (n *Notifier) Close() error {
	return n.raw.Close()
}
