package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// Cache is the invalidation/read-through port for the derived views:
// remaining tickets per event, paginated per-user order listings, and
// the trending-events list. Correctness is eviction-driven; entries
// carry no TTL the mutation paths rely on.
type Cache interface {
	GetRemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error)
	SetRemainingTickets(ctx context.Context, rem *models.RemainingTickets) error
	EvictRemainingTickets(ctx context.Context, eventID string) error

	GetUserOrders(ctx context.Context, userID string, page, pageSize int) ([]models.Order, error)
	SetUserOrders(ctx context.Context, userID string, page, pageSize int, orders []models.Order) error
	EvictUserOrders(ctx context.Context, userID string) error

	GetTrendingEvents(ctx context.Context) ([]models.Event, error)
	SetTrendingEvents(ctx context.Context, events []models.Event) error
	EvictTrendingEvents(ctx context.Context) error
}

// ErrMiss is returned by the getters when the key is absent.
var ErrMiss = redis.Nil

type redisCache struct {
	cli *redis.Client
	l   logger.Logger
}

func New(cli *redis.Client, l logger.Logger) Cache {
	return &redisCache{cli: cli, l: l}
}

const trendingKey = "trending-events"

func remainingKey(eventID string) string {
	return fmt.Sprintf("remaining-tickets:%s", eventID)
}

func ordersKey(userID string, page, pageSize int) string {
	return fmt.Sprintf("orders:%s:%d:%d", userID, page, pageSize)
}

func (c *redisCache) GetRemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error) {
	val, err := c.cli.Get(ctx, remainingKey(eventID)).Bytes()
	if err != nil {
		return nil, err
	}

	var rem models.RemainingTickets
	if err := json.Unmarshal(val, &rem); err != nil {
		return nil, err
	}

	return &rem, nil
}

func (c *redisCache) SetRemainingTickets(ctx context.Context, rem *models.RemainingTickets) error {
	val, err := json.Marshal(rem)
	if err != nil {
		return err
	}

	if err := c.cli.Set(ctx, remainingKey(rem.EventID), val, 0).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.SetRemainingTickets: %v", err)
		return err
	}

	return nil
}

func (c *redisCache) EvictRemainingTickets(ctx context.Context, eventID string) error {
	if err := c.cli.Del(ctx, remainingKey(eventID)).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.EvictRemainingTickets: %v", err)
		return err
	}

	return nil
}

func (c *redisCache) GetUserOrders(ctx context.Context, userID string, page, pageSize int) ([]models.Order, error) {
	val, err := c.cli.Get(ctx, ordersKey(userID, page, pageSize)).Bytes()
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := json.Unmarshal(val, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (c *redisCache) SetUserOrders(ctx context.Context, userID string, page, pageSize int, orders []models.Order) error {
	val, err := json.Marshal(orders)
	if err != nil {
		return err
	}

	if err := c.cli.Set(ctx, ordersKey(userID, page, pageSize), val, 0).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.SetUserOrders: %v", err)
		return err
	}

	return nil
}

// EvictUserOrders clears every cached page for the user in one pass.
// Order lists are a coarse, infrequently-read view; wholesale clearing
// keeps page invalidation trivially correct.
func (c *redisCache) EvictUserOrders(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("orders:%s:*", userID)

	iter := c.cli.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.EvictUserOrders: %v", err)
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.cli.Del(ctx, keys...).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.EvictUserOrders: %v", err)
		return err
	}

	return nil
}

func (c *redisCache) GetTrendingEvents(ctx context.Context) ([]models.Event, error) {
	val, err := c.cli.Get(ctx, trendingKey).Bytes()
	if err != nil {
		return nil, err
	}

	var events []models.Event
	if err := json.Unmarshal(val, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (c *redisCache) SetTrendingEvents(ctx context.Context, events []models.Event) error {
	val, err := json.Marshal(events)
	if err != nil {
		return err
	}

	if err := c.cli.Set(ctx, trendingKey, val, 0).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.SetTrendingEvents: %v", err)
		return err
	}

	return nil
}

func (c *redisCache) EvictTrendingEvents(ctx context.Context) error {
	if err := c.cli.Del(ctx, trendingKey).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisCache.EvictTrendingEvents: %v", err)
		return err
	}

	return nil
}
