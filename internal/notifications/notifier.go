// Package notifications delivers car events to live feed subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"carlot/internal/middleware"
	"carlot/internal/models"

	"github.com/redis/go-redis/v9"
)

// CarEventsChannel is the Redis channel every instance publishes car events to.
const CarEventsChannel = "cars:events"

// Notifier publishes car events into Redis. Without Redis it hands the
// payload straight to the local sink so a single instance still has a feed.
type Notifier struct {
	rdb   *redis.Client
	local func(payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocalSink sets the delivery function used when Redis is unavailable.
func (n *Notifier) SetLocalSink(fn func(payload string)) {
	n.local = fn
}

// PublishCarEvent encodes event and publishes it on CarEventsChannel.
func (n *Notifier) PublishCarEvent(ctx context.Context, event models.CarEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal car event: %w", err)
	}
	if n.rdb == nil {
		if n.local != nil {
			n.local(string(payload))
		}
		return nil
	}
	return n.rdb.Publish(ctx, CarEventsChannel, string(payload)).Err()
}

// StartCarEventSubscriber subscribes to CarEventsChannel and calls onMessage
// for each payload until ctx is cancelled.
func (n *Notifier) StartCarEventSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, CarEventsChannel)
	// Wait for the subscription to be confirmed so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", CarEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in car event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
