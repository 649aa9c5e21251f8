package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"paynotify-system/internal/domain"
)

// RedisSellerDirectory reads the seller sets maintained by the account
// management side. Key layout: admin:{administratorID}:sellers is a set of
// seller ids.
type RedisSellerDirectory struct {
	client *redis.Client
}

func NewRedisSellerDirectory(client *redis.Client) *RedisSellerDirectory {
	return &RedisSellerDirectory{client: client}
}

func (r *RedisSellerDirectory) SellersFor(ctx context.Context, administratorID string) ([]string, error) {
	key := fmt.Sprintf("admin:%s:sellers", administratorID)

	sellers, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list sellers", Err: err}
	}
	return sellers, nil
}

func (r *RedisSellerDirectory) IsSellerOf(ctx context.Context, administratorID, sellerID string) (bool, error) {
	key := fmt.Sprintf("admin:%s:sellers", administratorID)

	member, err := r.client.SIsMember(ctx, key, sellerID).Result()
	if err != nil {
		return false, &domain.PersistenceError{Op: "check seller membership", Err: err}
	}
	return member, nil
}
