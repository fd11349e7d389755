package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DelayMode selects how the wait between failed attempts grows.
type DelayMode int

const (
	DelayNone DelayMode = iota
	DelayLinear
	DelayExponential
)

// ParseDelayMode accepts "none", "linear" or "exponential".
func ParseDelayMode(s string) (DelayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return DelayNone, nil
	case "linear":
		return DelayLinear, nil
	case "exponential", "exp":
		return DelayExponential, nil
	default:
		return DelayNone, fmt.Errorf("ratelimit: unknown delay mode %q", s)
	}
}

func (m DelayMode) String() string {
	switch m {
	case DelayLinear:
		return "linear"
	case DelayExponential:
		return "exponential"
	default:
		return "none"
	}
}

// FailMode decides the outcome when the backing store cannot be reached.
type FailMode int

const (
	// FailClosed denies the attempt. Use it for anything guarding secrets.
	FailClosed FailMode = iota

	// FailOpen admits the attempt and marks the result degraded.
	FailOpen
)

// Policy configures one guarded action.
type Policy struct {
	// Action namespaces keys, e.g. "download" or "admin-auth".
	Action string

	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration

	Delay     DelayMode
	BaseDelay time.Duration
	MaxDelay  time.Duration

	FailMode FailMode
}

// DefaultPolicy returns the stock thresholds for action: 5 attempts per
// 15 minutes, 30 minute lockout, exponential delay from 1s capped at 30s.
func DefaultPolicy(action string) Policy {
	return Policy{
		Action:      action,
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
		Delay:       DelayExponential,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		FailMode:    FailClosed,
	}
}

// Validate rejects policies that cannot be enforced.
func (p Policy) Validate() error {
	var errs []error
	if p.Action == "" {
		errs = append(errs, errors.New("action is required"))
	}
	if strings.Contains(p.Action, ":") {
		errs = append(errs, errors.New("action must not contain ':'"))
	}
	if p.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if p.Window <= 0 {
		errs = append(errs, errors.New("window must be positive"))
	}
	if p.Lockout <= 0 {
		errs = append(errs, errors.New("lockout must be positive"))
	}
	if p.Delay != DelayNone {
		if p.BaseDelay <= 0 {
			errs = append(errs, errors.New("base delay must be positive"))
		}
		if p.MaxDelay < p.BaseDelay {
			errs = append(errs, errors.New("max delay must be at least the base delay"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ratelimit: invalid policy %q: %w", p.Action, err)
	}
	return nil
}

// Key namespaces identifier under the policy action.
func (p Policy) Key(identifier string) string {
	return p.Action + ":" + identifier
}

// DelayAfter returns the wait imposed after n consecutive failures.
func (p Policy) DelayAfter(n int) time.Duration {
	if n <= 0 || p.Delay == DelayNone {
		return 0
	}

	var d time.Duration
	switch p.Delay {
	case DelayLinear:
		d = p.BaseDelay * time.Duration(n)
	case DelayExponential:
		// 2^(n-1) overflows long before it matters, cap the shift
		shift := min(n-1, 30)
		d = p.BaseDelay << shift
	}

	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ttl is how long a counter must outlive its last write.
func (p Policy) ttl() time.Duration {
	return p.Window + p.Lockout + p.MaxDelay
}
