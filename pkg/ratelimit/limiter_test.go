package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Action:      "download",
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
	}
}

func newLimiter(t *testing.T, p ratelimit.Policy, clk *clock) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
	t.Helper()
	store := ratelimit.NewMemoryStore()
	store.Clock = clk.Now

	l, err := ratelimit.New(ratelimit.Config{Store: store, Policy: p, Clock: clk.Now})
	require.NoError(t, err)
	return l, store
}

// attempt runs one check and, when admitted, records a failure.
func attempt(t *testing.T, l *ratelimit.Limiter, id string) ratelimit.Result {
	t.Helper()
	res, err := l.CheckAndLimit(context.Background(), id)
	require.NoError(t, err)
	if res.Success {
		_, err := l.RecordAttempt(context.Background(), id, false, map[string]string{"reason": "wrong_password"})
		require.NoError(t, err)
	}
	return res
}

func TestNew_Validation(t *testing.T) {
	_, err := ratelimit.New(ratelimit.Config{Policy: testPolicy()})
	require.Error(t, err, "store required")

	bad := testPolicy()
	bad.MaxAttempts = 0
	_, err = ratelimit.New(ratelimit.Config{Store: ratelimit.NewMemoryStore(), Policy: bad})
	require.Error(t, err)
}

func TestLimiter_LocksAfterMaxAttempts(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)

	for i := 1; i <= 5; i++ {
		res := attempt(t, l, "203.0.113.7")
		require.True(t, res.Success, "attempt %d", i)
		require.False(t, res.IsLocked)
		require.Equal(t, 5-i, res.Remaining)
	}

	for range 3 {
		res := attempt(t, l, "203.0.113.7")
		require.False(t, res.Success)
		require.True(t, res.IsLocked)
		require.Equal(t, 30*time.Minute, res.LockoutDuration)
		require.Equal(t, 30*time.Minute, res.RetryAfter())
	}

	// another identifier is unaffected
	require.True(t, attempt(t, l, "198.51.100.1").Success)
}

func TestLimiter_LockoutIsFixedAndExpires(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)

	for range 5 {
		attempt(t, l, "ip")
	}

	clk.Advance(10 * time.Minute)
	res := attempt(t, l, "ip")
	require.True(t, res.IsLocked)
	require.Equal(t, 20*time.Minute, res.LockoutDuration, "attempts during lockout do not extend it")

	clk.Advance(20 * time.Minute)
	res = attempt(t, l, "ip")
	require.True(t, res.Success, "lock should have expired")
	require.False(t, res.IsLocked)
	require.Equal(t, 4, res.Remaining, "fresh window after lockout")
}

func TestLimiter_WindowExpiryResetsCount(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)

	for range 4 {
		require.True(t, attempt(t, l, "ip").Success)
	}

	clk.Advance(15 * time.Minute)

	res := attempt(t, l, "ip")
	require.True(t, res.Success)
	require.Equal(t, 4, res.Remaining)
}

func TestLimiter_SixFailedRecordsLock(t *testing.T) {
	p := testPolicy()
	p.Window = time.Minute
	clk := newClock()
	l, _ := newLimiter(t, p, clk)
	ctx := context.Background()

	for range 6 {
		_, err := l.RecordAttempt(ctx, "203.0.113.7", false, nil)
		require.NoError(t, err)
	}

	for range 3 {
		res, err := l.CheckAndLimit(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.False(t, res.Success)
		require.True(t, res.IsLocked)
	}

	res, err := l.CheckAndLimit(ctx, "198.51.100.1")
	require.NoError(t, err)
	require.True(t, res.Success, "a different key has its own budget")
}

func TestLimiter_SuccessesNeitherConsumeNorLaunder(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)
	ctx := context.Background()

	for range 4 {
		attempt(t, l, "ip")
	}

	for i := range 20 {
		res, err := l.CheckAndLimit(ctx, "ip")
		require.NoError(t, err)
		require.True(t, res.Success, "success %d", i+1)
		require.Equal(t, 0, res.Remaining, "the reservation holds the last slot")

		rec, err := l.RecordAttempt(ctx, "ip", true, nil)
		require.NoError(t, err)
		require.True(t, rec.Success)
		require.Equal(t, 1, rec.Remaining, "the reservation is released, the failures stay")
	}

	res := attempt(t, l, "ip")
	require.True(t, res.Success)

	res, err := l.CheckAndLimit(ctx, "ip")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.IsLocked)
}

func TestLimiter_RecordResultReportsLock(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)
	ctx := context.Background()

	for range 4 {
		attempt(t, l, "ip")
	}

	res, err := l.CheckAndLimit(ctx, "ip")
	require.NoError(t, err)
	require.True(t, res.Success, "the attempt that reaches the limit is admitted")
	require.Equal(t, 0, res.Remaining)

	rec, err := l.RecordAttempt(ctx, "ip", false, nil)
	require.NoError(t, err)
	require.True(t, rec.Success, "the fifth failure is still within budget")
	require.True(t, rec.IsLocked)
	require.Equal(t, 30*time.Minute, rec.LockoutDuration)

	rec, err = l.RecordAttempt(ctx, "ip", false, nil)
	require.NoError(t, err)
	require.False(t, rec.Success)
	require.True(t, rec.IsLocked)
	require.Equal(t, 30*time.Minute, rec.LockoutDuration, "failures during lockout do not extend it")
}

func TestLimiter_InFlightReservationsHoldBudget(t *testing.T) {
	p := testPolicy()
	p.MaxAttempts = 2
	l, _ := newLimiter(t, p, newClock())
	ctx := context.Background()

	for range 2 {
		res, err := l.CheckAndLimit(ctx, "ip")
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	busy, err := l.CheckAndLimit(ctx, "ip")
	require.NoError(t, err)
	require.False(t, busy.Success)
	require.False(t, busy.IsLocked)

	_, err = l.RecordAttempt(ctx, "ip", true, nil)
	require.NoError(t, err)

	res, err := l.CheckAndLimit(ctx, "ip")
	require.NoError(t, err)
	require.True(t, res.Success, "a settled success frees its slot")
}

func TestLimiter_ProgressiveDelay(t *testing.T) {
	tests := []struct {
		name  string
		mode  ratelimit.DelayMode
		wants []time.Duration
	}{
		{"linear", ratelimit.DelayLinear, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}},
		{"exponential", ratelimit.DelayExponential, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPolicy()
			p.MaxAttempts = 100
			p.Delay = tt.mode
			p.BaseDelay = time.Second
			p.MaxDelay = 5 * time.Second

			clk := newClock()
			l, _ := newLimiter(t, p, clk)
			ctx := context.Background()

			for i, want := range tt.wants {
				res, err := l.CheckAndLimit(ctx, "ip")
				require.NoError(t, err)
				require.True(t, res.Success, "attempt %d", i+1)

				rec, err := l.RecordAttempt(ctx, "ip", false, nil)
				require.NoError(t, err)
				require.Equal(t, want, rec.NextAttemptDelay, "after failure %d", i+1)

				// too early: denied, not locked, not counted
				clk.Advance(want / 2)
				early, err := l.CheckAndLimit(ctx, "ip")
				require.NoError(t, err)
				require.False(t, early.Success)
				require.False(t, early.IsLocked)
				require.Equal(t, want-want/2, early.RetryAfter())
				require.Equal(t, p.MaxAttempts-(i+1), early.Remaining)

				clk.Advance(want - want/2)
			}

			// a success clears the streak
			res, err := l.CheckAndLimit(ctx, "ip")
			require.NoError(t, err)
			require.True(t, res.Success)
			rec, err := l.RecordAttempt(ctx, "ip", true, nil)
			require.NoError(t, err)
			require.Zero(t, rec.NextAttemptDelay)
		})
	}
}

func TestLimiter_ConcurrentChecksNeverOverAdmit(t *testing.T) {
	p := testPolicy()
	p.MaxAttempts = 10

	clk := newClock()
	l, _ := newLimiter(t, p, clk)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.CheckAndLimit(context.Background(), "shared")
			if err == nil && res.Success {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 10, allowed.Load())
}

func TestLimiter_ConcurrentFailedRecordsNeverOverAdmit(t *testing.T) {
	p := testPolicy()
	p.MaxAttempts = 10

	clk := newClock()
	l, _ := newLimiter(t, p, clk)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.RecordAttempt(context.Background(), "shared", false, nil)
			if err == nil && res.Success {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 10, allowed.Load())

	res, err := l.CheckAndLimit(context.Background(), "shared")
	require.NoError(t, err)
	require.True(t, res.IsLocked)
}

func TestLimiter_ConcurrentCheckAndRecord(t *testing.T) {
	p := testPolicy()
	p.MaxAttempts = 10

	clk := newClock()
	l, _ := newLimiter(t, p, clk)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			res, err := l.CheckAndLimit(ctx, "shared")
			if err != nil || !res.Success {
				return
			}
			admitted.Add(1)
			_, _ = l.RecordAttempt(ctx, "shared", false, nil)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, admitted.Load(), int32(10))

	res, err := l.CheckAndLimit(context.Background(), "shared")
	require.NoError(t, err)
	require.False(t, res.Success)
}

func TestLimiter_EmptyIdentifier(t *testing.T) {
	l, _ := newLimiter(t, testPolicy(), newClock())

	_, err := l.CheckAndLimit(context.Background(), "  ")
	require.ErrorIs(t, err, ratelimit.ErrEmptyIdentifier)

	_, err = l.RecordAttempt(context.Background(), "", false, nil)
	require.ErrorIs(t, err, ratelimit.ErrEmptyIdentifier)
}

func TestLimiter_Reset(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)

	for range 6 {
		attempt(t, l, "ip")
	}
	require.NoError(t, l.Reset(context.Background(), "ip"))
	require.True(t, attempt(t, l, "ip").Success)
}

func TestLimiter_StatusDoesNotReserve(t *testing.T) {
	clk := newClock()
	l, _ := newLimiter(t, testPolicy(), clk)
	ctx := context.Background()

	for range 10 {
		res, err := l.Status(ctx, "ip")
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, 5, res.Remaining)
	}

	for range 5 {
		attempt(t, l, "ip")
	}

	res, err := l.Status(ctx, "ip")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.IsLocked)
	require.Equal(t, 30*time.Minute, res.LockoutDuration)

	clk.Advance(31 * time.Minute)
	res, err = l.Status(ctx, "ip")
	require.NoError(t, err)
	require.True(t, res.Success)
}

// brokenStore fails or stalls every call.
type brokenStore struct {
	err   error
	stall bool
	calls atomic.Int32
}

func (s *brokenStore) Update(ctx context.Context, _ string, _ time.Duration, _ ratelimit.UpdateFunc) (ratelimit.Counter, error) {
	s.calls.Add(1)
	if s.stall {
		<-ctx.Done()
		return ratelimit.Counter{}, ctx.Err()
	}
	return ratelimit.Counter{}, s.err
}

func (s *brokenStore) Get(context.Context, string) (ratelimit.Counter, bool, error) {
	return ratelimit.Counter{}, false, s.err
}

func (s *brokenStore) Delete(context.Context, string) error { return s.err }

func (s *brokenStore) Ping(context.Context) error { return s.err }

func TestLimiter_StoreFailure(t *testing.T) {
	tests := []struct {
		name  string
		store *brokenStore
	}{
		{"error", &brokenStore{err: errors.New("connection refused")}},
		{"timeout", &brokenStore{stall: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/fail closed", func(t *testing.T) {
			l, err := ratelimit.New(ratelimit.Config{Store: tt.store, Policy: testPolicy(), Timeout: 20 * time.Millisecond})
			require.NoError(t, err)

			res, err := l.CheckAndLimit(context.Background(), "ip")
			require.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
			require.False(t, res.Success)
			require.False(t, res.Degraded)
		})

		t.Run(tt.name+"/fail open", func(t *testing.T) {
			p := testPolicy()
			p.FailMode = ratelimit.FailOpen

			l, err := ratelimit.New(ratelimit.Config{Store: tt.store, Policy: p, Timeout: 20 * time.Millisecond})
			require.NoError(t, err)

			res, err := l.CheckAndLimit(context.Background(), "ip")
			require.NoError(t, err)
			require.True(t, res.Success)
			require.True(t, res.Degraded)
		})
	}
}

func TestLimiter_KeysAreNamespaced(t *testing.T) {
	clk := newClock()
	store := ratelimit.NewMemoryStore()
	store.Clock = clk.Now

	download := testPolicy()
	admin := testPolicy()
	admin.Action = "admin-auth"
	admin.MaxAttempts = 1

	dl, err := ratelimit.New(ratelimit.Config{Store: store, Policy: download, Clock: clk.Now})
	require.NoError(t, err)
	al, err := ratelimit.New(ratelimit.Config{Store: store, Policy: admin, Clock: clk.Now})
	require.NoError(t, err)

	attempt(t, al, "ip")
	require.False(t, attempt(t, al, "ip").Success)
	require.True(t, attempt(t, dl, "ip").Success, "separate action, separate budget")

	_, ok, err := store.Get(context.Background(), fmt.Sprintf("%s:%s", "admin-auth", "ip"))
	require.NoError(t, err)
	require.True(t, ok)
}
