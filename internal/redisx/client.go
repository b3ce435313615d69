package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Mark sets key if absent. It reports whether this call was the one that set it.
func Mark(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

type OrderStatus struct {
	OrderID   int64     `json:"order_id"`
	BuyerID   string    `json:"buyer_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func CacheOrderStatus(ctx context.Context, rdb *redis.Client, s OrderStatus) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, s.OrderID), b, TTLStatusCache).Err()
}

// CachedOrderStatus returns ok=false on a cache miss.
func CachedOrderStatus(ctx context.Context, rdb *redis.Client, orderID int64) (OrderStatus, bool, error) {
	var s OrderStatus
	b, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false, err
	}
	return s, true, nil
}

func InvalidateOrderStatus(ctx context.Context, rdb *redis.Client, orderID int64) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
