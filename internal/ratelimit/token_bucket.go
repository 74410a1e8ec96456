// Package ratelimit meters API work per caller with a token bucket held in
// redis, so every API replica draws from the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "vectorflow:ratelimit"

// Decision is the outcome of one Allow call. RetryAfter is set only when
// the request was refused.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	Cost       int64
	RetryAfter time.Duration
}

// Config sizes the bucket: Capacity tokens refill evenly over Window.
type Config struct {
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

type RedisTokenBucket struct {
	client   redis.UniversalClient
	capacity int64
	window   time.Duration
	prefix   string
}

// takeScript refills the bucket from redis server time, so replicas with
// skewed clocks agree, then takes ARGV[3] tokens if they are available.
// It replies {allowed, remaining, wait_us}.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local window_us = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])

local t = redis.call("TIME")
local now_us = tonumber(t[1]) * 1000000 + tonumber(t[2])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now_us

local per_us = capacity / window_us
tokens = math.min(capacity, tokens + math.max(0, now_us - ts) * per_us)

local allowed = 0
local wait_us = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait_us = math.ceil((cost - tokens) / per_us)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now_us)
redis.call("PEXPIRE", KEYS[1], math.ceil(window_us / 500))
return {allowed, math.floor(tokens), wait_us}
`)

func NewRedisTokenBucket(client redis.UniversalClient, cfg Config) (*RedisTokenBucket, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("window must be at least 1ms")
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisTokenBucket{
		client:   client,
		capacity: int64(cfg.Capacity),
		window:   cfg.Window,
		prefix:   prefix,
	}, nil
}

// Allow charges cost tokens to subject. Costs below one count as one and
// costs above capacity are clamped to it, so every request can eventually
// pass.
func (l *RedisTokenBucket) Allow(ctx context.Context, subject string, cost int64) (Decision, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	cost = min(max(cost, 1), l.capacity)

	reply, err := takeScript.Run(ctx, l.client,
		[]string{l.prefix + ":" + subject},
		l.capacity,
		l.window.Microseconds(),
		cost,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	return decide(reply, l.capacity, cost)
}

func decide(reply []int64, capacity, cost int64) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("token bucket reply has %d values, want 3", len(reply))
	}

	d := Decision{
		Allowed:   reply[0] == 1,
		Limit:     capacity,
		Remaining: reply[1],
		Cost:      cost,
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(reply[2]) * time.Microsecond
	}
	return d, nil
}
