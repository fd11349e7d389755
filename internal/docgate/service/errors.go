package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/sanitize"
)

// Sentinels callers branch on with errors.Is. The HTTP layer maps each to
// one status code.
var (
	ErrInvalidInput     = errors.New("invalid_input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not_found")
	ErrTooLarge         = errors.New("too_large")
	ErrCryptoFailure    = errors.New("crypto_failure")
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrRateLimited      = errors.New("rate_limited")
)

// InvalidInputError reports which field failed sanitization and why.
type InvalidInputError struct {
	Field      string
	Violations []sanitize.Violation
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Violations)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// RateLimitedError is returned when the limiter denies an attempt.
type RateLimitedError struct {
	RetryAfter time.Duration
	Locked     bool
}

func (e *RateLimitedError) Error() string {
	if e.Locked {
		return fmt.Sprintf("rate limited: locked for %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// storeUnavailable tags err so it maps to ErrStoreUnavailable.
func storeUnavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, what, err)
}

// sanitizeField runs raw through opts and returns the sanitized value or an
// *InvalidInputError.
func sanitizeField(field, raw string, opts sanitize.Options) (string, error) {
	res := sanitize.ValidateAndSanitize(raw, opts)
	if !res.Valid {
		return "", &InvalidInputError{Field: field, Violations: res.Violations}
	}
	return res.Sanitized, nil
}
