package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedRepo serves Get and ListProducts from Redis and drops the cached
// order on every write. Redis errors fall through to the wrapped repository.
type CachedRepo struct {
	Repository
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func (c *CachedRepo) Get(ctx context.Context, id int64) (Order, error) {
	key := fmt.Sprintf(redisx.KeyOrder, id)
	if b, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var o Order
		if json.Unmarshal(b, &o) == nil {
			c.Metrics.CacheHits.WithLabelValues("order").Inc()
			return o, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.Log.Warn("order cache read failed", zap.Int64("order_id", id), zap.Error(err))
	}
	c.Metrics.CacheMisses.WithLabelValues("order").Inc()

	genKey := fmt.Sprintf(redisx.KeyOrderGen, id)
	gen, genErr := c.Redis.Get(ctx, genKey).Int64()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = 0, nil
	}

	o, err := c.Repository.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if genErr == nil {
		c.fill(ctx, key, genKey, gen, o)
	}
	return o, nil
}

// fill caches o unless a write invalidated the order after gen was read.
func (c *CachedRepo) fill(ctx context.Context, key, genKey string, gen int64, o Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	err = c.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			cur, err = 0, nil
		}
		if err != nil || cur != gen {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, redisx.TTLOrderCache)
			return nil
		})
		return err
	}, genKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		c.Log.Debug("order cache fill skipped", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (c *CachedRepo) SetSessionID(ctx context.Context, id int64, sessionID string) error {
	defer c.invalidate(ctx, id)
	return c.Repository.SetSessionID(ctx, id, sessionID)
}

func (c *CachedRepo) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	defer c.invalidate(ctx, id)
	return c.Repository.UpdateStatus(ctx, id, from, to)
}

func (c *CachedRepo) ListProducts(ctx context.Context) ([]Product, error) {
	if b, err := c.Redis.Get(ctx, redisx.KeyProducts).Bytes(); err == nil {
		var ps []Product
		if json.Unmarshal(b, &ps) == nil {
			c.Metrics.CacheHits.WithLabelValues("products").Inc()
			return ps, nil
		}
	}
	c.Metrics.CacheMisses.WithLabelValues("products").Inc()

	ps, err := c.Repository.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(ps); err == nil {
		_ = c.Redis.Set(ctx, redisx.KeyProducts, b, redisx.TTLProducts).Err()
	}
	return ps, nil
}

func (c *CachedRepo) invalidate(ctx context.Context, id int64) {
	genKey := fmt.Sprintf(redisx.KeyOrderGen, id)
	_, err := c.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, 2*redisx.TTLOrderCache)
		p.Del(ctx, fmt.Sprintf(redisx.KeyOrder, id))
		return nil
	})
	if err != nil {
		c.Log.Warn("order cache invalidation failed", zap.Int64("order_id", id), zap.Error(err))
	}
}
