package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisClaims records processed webhook event ids.
type RedisClaims struct {
	Redis *redis.Client
}

func (c *RedisClaims) Claim(ctx context.Context, eventID string) (bool, error) {
	return redisx.Claim(ctx, c.Redis, fmt.Sprintf(redisx.KeyWebhookEvent, eventID), "1", redisx.TTLWebhookEvent)
}

func (c *RedisClaims) Forget(ctx context.Context, eventID string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyWebhookEvent, eventID)).Err()
}
