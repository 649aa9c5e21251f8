package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"paynotify-system/internal/domain"
)

const paymentEventsChannel = "payment_events"

type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (r *RedisEventPublisher) PublishPaymentEvent(ctx context.Context, event *domain.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, paymentEventsChannel, payload).Err()
}
