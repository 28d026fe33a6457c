// Package admission bounds request rates before any authorization work runs.
// Counters live in Redis as per-key sorted sets of request timestamps, giving
// a sliding window rather than fixed buckets; trim, count, and admit run as a
// single Lua script so concurrent checks cannot overshoot the quota.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims expired entries, counts the window, and records
// the request when the quota allows it, all in one round trip.
// Returns: allowed (0 or 1), remaining, reset time in ms.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		count = count + 1
		allowed = 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_ms = window_ms
	if #oldest > 0 then
		reset_ms = tonumber(oldest[2]) + window_ms - now
	end

	return {allowed, limit - count, reset_ms}
`)

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter implements a sliding-window counter over Redis.
type Limiter struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewLimiter constructs a Limiter.
func NewLimiter(client redis.Cmdable, logger *slog.Logger) *Limiter {
	return &Limiter{client: client, logger: logger}
}

// Check records one request against the key and reports whether it is
// admitted. A store failure resolves according to the policy's failure mode
// and returns the error for logging.
func (l *Limiter) Check(ctx context.Context, key string, policy Policy) (Decision, error) {
	now := time.Now()
	redisKey := "admission:" + policy.Name + ":" + key

	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKey},
		policy.MaxRequests,
		policy.Window.Milliseconds(),
		now.UnixMilli(),
		uuid.NewString(),
	).Result()
	if err != nil {
		return l.failDecision(policy), err
	}

	allowed, remaining, resetMs, err := parseScriptResult(result)
	if err != nil {
		return l.failDecision(policy), err
	}

	resetAt := now.Add(time.Duration(resetMs) * time.Millisecond)
	decision := Decision{
		Allowed:   allowed,
		Limit:     policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		decision.RetryAfter = time.Until(resetAt)
	}
	return decision, nil
}

// parseScriptResult decodes the [allowed, remaining, reset_ms] reply.
func parseScriptResult(result any) (allowed bool, remaining int, resetMs int64, err error) {
	values, ok := result.([]any)
	if !ok || len(values) < 3 {
		return false, 0, 0, fmt.Errorf("admission: unexpected script reply %v", result)
	}
	if v, ok := values[0].(int64); ok && v == 1 {
		allowed = true
	}
	if v, ok := values[1].(int64); ok && v > 0 {
		remaining = int(v)
	}
	if v, ok := values[2].(int64); ok {
		resetMs = v
	}
	return allowed, remaining, resetMs, nil
}

// failDecision resolves a store outage: closed for authentication policies,
// open otherwise.
func (l *Limiter) failDecision(policy Policy) Decision {
	return Decision{
		Allowed:    !policy.FailClosed,
		Limit:      policy.MaxRequests,
		Remaining:  0,
		ResetAt:    time.Now().Add(policy.Window),
		RetryAfter: policy.Window,
	}
}
