// Package ratelimit bounds attempts per key with a sliding window, a fixed
// lockout and an optional progressive delay between failures. State lives in
// an injected Store so several replicas can share one budget.
//
// A key moves OPEN -> LOCKED when its failures within the window reach
// MaxAttempts and back to OPEN once the lockout has elapsed. CheckAndLimit
// reserves an attempt before the guarded operation runs, so concurrent
// callers cannot overshoot the budget; RecordAttempt settles it. Only failed
// attempts are counted.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultStoreTimeout bounds each store call when Config.Timeout is unset.
const DefaultStoreTimeout = 500 * time.Millisecond

// Result of a check or record.
type Result struct {
	Success          bool
	Remaining        int
	ResetTime        time.Time
	IsLocked         bool
	LockoutDuration  time.Duration
	NextAttemptDelay time.Duration

	// Degraded is set when the store failed and the policy failed open.
	Degraded bool
}

// RetryAfter is the wait a denied caller should be told about.
func (r Result) RetryAfter() time.Duration {
	if r.IsLocked {
		return r.LockoutDuration
	}
	return r.NextAttemptDelay
}

// Config for New.
type Config struct {
	Store  Store
	Policy Policy

	// Timeout bounds every store call. Defaults to DefaultStoreTimeout.
	Timeout time.Duration

	Logger *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Limiter enforces one Policy against one Store. Safe for concurrent use.
type Limiter struct {
	store   Store
	policy  Policy
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// New validates cfg and returns a Limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		store:   cfg.Store,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
		now:     cfg.Clock,
	}
	if l.timeout <= 0 {
		l.timeout = DefaultStoreTimeout
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	l.log = l.log.With("action", cfg.Policy.Action)

	return l, nil
}

// Policy returns the enforced policy.
func (l *Limiter) Policy() Policy { return l.policy }

// CheckAndLimit reserves an attempt for identifier. A successful result
// means the caller may run the guarded operation and should then call
// RecordAttempt. Locked and delayed checks are denied without being counted.
func (l *Limiter) CheckAndLimit(ctx context.Context, identifier string) (Result, error) {
	key, err := l.key(identifier)
	if err != nil {
		return Result{}, err
	}

	now := l.now()
	var allowed bool

	c, err := l.update(ctx, key, func(c *Counter) error {
		allowed = c.admit(l.policy, now)
		return nil
	})
	if err != nil {
		return l.unavailable(key, err)
	}

	res := c.result(l.policy, now, allowed)
	if !allowed {
		l.log.Warn("attempt denied",
			"key", key,
			"locked", res.IsLocked,
			"retry_after_ms", res.RetryAfter().Milliseconds(),
		)
	}
	return res, nil
}

// RecordAttempt records the outcome of the operation admitted by the last
// CheckAndLimit. It may also be called without a prior check. A failure
// counts towards the lockout; the result reports Success when the attempt
// was within budget, so a failure recorded against a locked key is not.
// meta is attached to the audit log line.
func (l *Limiter) RecordAttempt(ctx context.Context, identifier string, success bool, meta map[string]string) (Result, error) {
	key, err := l.key(identifier)
	if err != nil {
		return Result{}, err
	}

	now := l.now()

	var allowed bool

	c, err := l.update(ctx, key, func(c *Counter) error {
		allowed = c.record(l.policy, success, now)
		return nil
	})
	if err != nil {
		return l.unavailable(key, err)
	}

	if !success {
		attrs := []any{"key", key, "failures", c.Count, "locked", c.Locked(now)}
		for k, v := range meta {
			attrs = append(attrs, k, v)
		}
		l.log.Info("attempt failed", attrs...)
	}

	return c.result(l.policy, now, allowed), nil
}

// Status reports what CheckAndLimit would decide for identifier without
// reserving an attempt.
func (l *Limiter) Status(ctx context.Context, identifier string) (Result, error) {
	key, err := l.key(identifier)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	c, _, err := l.store.Get(ctx, key)
	if err != nil {
		return l.unavailable(key, err)
	}

	now := l.now()
	c.roll(l.policy, now)
	allowed := !c.Locked(now) && c.wait(l.policy, now) == 0 && c.Count+c.Pending < l.policy.MaxAttempts
	return c.result(l.policy, now, allowed), nil
}

// Reset forgets all state for identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	key, err := l.key(identifier)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrEmptyIdentifier
	}
	return l.policy.Key(identifier), nil
}

func (l *Limiter) update(ctx context.Context, key string, fn UpdateFunc) (Counter, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	return l.store.Update(ctx, key, l.policy.ttl(), fn)
}

func (l *Limiter) unavailable(key string, err error) (Result, error) {
	err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)

	if l.policy.FailMode == FailOpen {
		l.log.Warn("store unavailable, failing open", "key", key, "err", err)
		return Result{Success: true, Degraded: true}, nil
	}

	l.log.Error("store unavailable, failing closed", "key", key, "err", err)
	return Result{}, err
}
