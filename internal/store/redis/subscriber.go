package redis

import (
	"context"
	"fmt"
	"log"

	goredis "github.com/go-redis/redis/v8"
)

// SubscribeConfig listens on channel and hands each payload to apply until
// ctx is cancelled. A failing apply is logged and the subscription continues,
// so one bad document never stops later updates.
func SubscribeConfig(ctx context.Context, client *goredis.Client, channel string, apply func([]byte) error) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	log.Printf("[redis] subscribed to %s", channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := apply([]byte(msg.Payload)); err != nil {
				log.Printf("[redis] config update on %s rejected: %v", channel, err)
				continue
			}
			log.Printf("[redis] config update on %s applied", channel)
		}
	}
}
