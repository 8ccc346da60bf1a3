package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"FleetGuard/internal/config"

	"github.com/redis/go-redis/v9"
)

// redisEvents шина уведомлений поверх Redis Pub/Sub, общая для нескольких экземпляров сервера
type redisEvents struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisEvents(cfg *config.RedisConfig, log *slog.Logger) (EventBus, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis")
	return &redisEvents{client: client, log: log}, nil
}

func (r *redisEvents) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := encodeEvent(message)
	if err != nil {
		return err
	}

	r.log.Debug("publishing event", "channel", channel, "length", len(data))
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *redisEvents) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	pubsub := r.client.Subscribe(ctx, channel)

	// ждем подтверждения подписки, иначе первые сообщения могут потеряться
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}

func (r *redisEvents) Close() error {
	return r.client.Close()
}

// []byte и string передаются как есть, остальное маршалится в JSON
func encodeEvent(message interface{}) ([]byte, error) {
	switch v := message.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(message)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal the event: %w", err)
		}
		return data, nil
	}
}
