package ratelimit

import "time"

// Counter is the persisted state for one key. A zero Counter is an unused
// key in the OPEN state.
type Counter struct {
	WindowStart time.Time `json:"window_start"`

	// Count is the number of failed attempts committed in the window.
	Count int `json:"count"`

	// Pending is the number of attempts admitted by CheckAndLimit whose
	// outcome has not been recorded yet. It is released on record and
	// dropped when the window rolls.
	Pending int `json:"pending"`

	// LockedUntil is zero while OPEN. It is fixed when the lock engages and
	// never extended by attempts made during the lockout.
	LockedUntil time.Time `json:"locked_until"`

	// Failures is the consecutive failure streak driving progressive delay.
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
}

// Locked reports whether the lockout is active at now.
func (c Counter) Locked(now time.Time) bool {
	return !c.LockedUntil.IsZero() && now.Before(c.LockedUntil)
}

// roll moves the counter forward to now: an elapsed lockout returns the key
// to a fresh OPEN state, an elapsed window starts a new one.
func (c *Counter) roll(p Policy, now time.Time) {
	if c.Locked(now) {
		return
	}
	if !c.LockedUntil.IsZero() {
		*c = Counter{}
	}
	if c.WindowStart.IsZero() || !now.Before(c.WindowStart.Add(p.Window)) {
		c.WindowStart = now
		c.Count = 0
		c.Pending = 0
	}
}

// wait is the remaining progressive delay at now.
func (c Counter) wait(p Policy, now time.Time) time.Duration {
	if c.Failures == 0 || c.LastFailure.IsZero() {
		return 0
	}
	until := c.LastFailure.Add(p.DelayAfter(c.Failures))
	if !now.Before(until) {
		return 0
	}
	return until.Sub(now)
}

// admit reserves an attempt. Committed failures and reservations still in
// flight together never exceed MaxAttempts. Denied attempts leave the
// counter untouched.
func (c *Counter) admit(p Policy, now time.Time) bool {
	c.roll(p, now)

	if c.Locked(now) || c.wait(p, now) > 0 {
		return false
	}
	if c.Count+c.Pending >= p.MaxAttempts {
		return false
	}

	c.Pending++
	return true
}

// record settles one attempt and reports whether it fell within the budget.
// A failure is committed to the window count and engages the lock when the
// count reaches MaxAttempts. A success releases its reservation and clears
// the failure streak; the count stays.
func (c *Counter) record(p Policy, success bool, now time.Time) bool {
	c.roll(p, now)

	if c.Pending > 0 {
		c.Pending--
	}

	if success {
		c.Failures = 0
		c.LastFailure = time.Time{}
		return true
	}

	if c.Locked(now) {
		return false
	}

	c.Count++
	c.Failures++
	c.LastFailure = now
	if c.Count >= p.MaxAttempts {
		c.LockedUntil = now.Add(p.Lockout)
	}
	return true
}

// result describes the counter at now. allowed is the outcome of the call
// being answered.
func (c Counter) result(p Policy, now time.Time, allowed bool) Result {
	r := Result{
		Success:          allowed,
		Remaining:        max(p.MaxAttempts-c.Count-c.Pending, 0),
		ResetTime:        c.WindowStart.Add(p.Window),
		NextAttemptDelay: c.wait(p, now),
	}

	if c.Locked(now) {
		r.Remaining = 0
		r.ResetTime = c.LockedUntil
		r.IsLocked = true
		r.LockoutDuration = c.LockedUntil.Sub(now)
	}
	return r
}
