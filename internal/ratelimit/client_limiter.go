package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/grievance-portal/internal/config"
)

const keyClientEndpoint = "grievance:ratelimit:%s:%s"

// ClientLimiter throttles public endpoints per client address.
type ClientLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewClientLimiter returns nil when limiting is disabled or redis is not
// configured. A nil limiter allows everything.
func NewClientLimiter(cfg config.Config, client *redis.Client) (*ClientLimiter, error) {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil, nil
	}
	if cfg.RateLimit.Rate <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil, ErrLimiterInvalidRate
	}
	return &ClientLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.Rate,
		burst:  cfg.RateLimit.Burst,
	}, nil
}

func (l *ClientLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ClientLimiter) Allow(ctx context.Context, endpoint, clientIP string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyClientEndpoint, strings.TrimSpace(endpoint), strings.TrimSpace(clientIP))
	return l.bucket.Take(ctx, key, l.rate, l.burst)
}
