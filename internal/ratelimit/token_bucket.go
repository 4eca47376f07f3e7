package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// refillScript keeps one bucket per key as a hash of {level, stamp}. The
// wait until the next token is computed server-side so callers never
// compare clocks with redis. The level goes out as a string because redis
// truncates Lua numbers to integers.
var refillScript = redis.NewScript(`
local perSecond = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local idleMs = tonumber(ARGV[3])

local clock = redis.call("TIME")
local nowMs = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "level", "stamp")
local level = tonumber(state[1]) or capacity
local stamp = tonumber(state[2]) or nowMs

local elapsed = math.max(0, nowMs - stamp)
level = math.min(capacity, level + elapsed * perSecond / 1000)

local granted = 0
local waitMs = 0
if level >= 1 then
  granted = 1
  level = level - 1
else
  waitMs = math.ceil((1 - level) * 1000 / perSecond)
end

redis.call("HSET", KEYS[1], "level", level, "stamp", nowMs)
redis.call("PEXPIRE", KEYS[1], idleMs)

return {granted, tostring(level), waitMs}
`)

var (
	ErrLimiterNotConfigured = errors.New("rate limiter not configured")
	ErrLimiterKeyEmpty      = errors.New("rate limiter key is empty")
	ErrLimiterInvalidRate   = errors.New("rate limiter rate and burst must be positive")
	ErrLimiterBadResponse   = errors.New("invalid rate limit script response")
)

// Decision is the outcome of taking one token from a bucket.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type TokenBucket struct {
	client redis.Scripter
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Take spends one token from the bucket at key, refilling at rate tokens
// per second up to burst.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	switch {
	case t == nil || t.client == nil:
		return Decision{}, ErrLimiterNotConfigured
	case key == "":
		return Decision{}, ErrLimiterKeyEmpty
	case rate <= 0 || burst <= 0:
		return Decision{}, ErrLimiterInvalidRate
	}

	reply, err := refillScript.Run(ctx, t.client, []string{key},
		rate, burst, bucketIdleTTL(rate, burst).Milliseconds()).Slice()
	if err != nil {
		return Decision{}, err
	}
	return decodeDecision(reply, burst)
}

func decodeDecision(reply []any, burst int) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, ErrLimiterBadResponse
	}
	level, err := cast.ToFloat64E(reply[1])
	if err != nil {
		return Decision{}, ErrLimiterBadResponse
	}
	return Decision{
		Allowed:    cast.ToInt64(reply[0]) == 1,
		Limit:      burst,
		Remaining:  int(math.Floor(level)),
		RetryAfter: time.Duration(cast.ToInt64(reply[2])) * time.Millisecond,
	}, nil
}

// bucketIdleTTL lets an untouched bucket expire after twice the time it
// takes to refill from empty.
func bucketIdleTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return max(time.Second, time.Duration(math.Ceil(2*float64(burst)/rate))*time.Second)
}
