package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis implements Broker over a Redis pub/sub channel.
type Redis struct {
	client     *redis.Client
	channel    string
	instanceID string
	pubsub     *redis.PubSub
}

// NewRedis connects to Redis and verifies the connection. instanceID stamps
// published frames so this instance's own frames are not replayed back.
func NewRedis(ctx context.Context, addr, password string, db int, channel, instanceID string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &Redis{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
	}, nil
}

// Publish stamps the frame with this instance's ID and publishes it.
func (r *Redis) Publish(ctx context.Context, frame Frame) error {
	frame.Origin = r.instanceID
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal broker frame: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish broker frame: %w", err)
	}
	return nil
}

// Subscribe starts consuming remote frames until ctx is canceled. Frames
// published by this instance are skipped.
func (r *Redis) Subscribe(ctx context.Context, handle func(Frame)) error {
	r.pubsub = r.client.Subscribe(ctx, r.channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-r.pubsub.Channel():
				if !ok {
					return
				}
				var frame Frame
				if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
					log.Printf("Dropping malformed broker frame: %v", err)
					continue
				}
				if frame.Origin == r.instanceID {
					continue
				}
				handle(frame)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Close stops the subscription and releases the client.
func (r *Redis) Close() error {
	if r.pubsub != nil {
		if err := r.pubsub.Close(); err != nil {
			return err
		}
	}
	return r.client.Close()
}
