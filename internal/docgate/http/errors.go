package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
)

// writeServiceError maps a service error onto its HTTP status and writes it.
// Crypto and store failures get the same generic body; the log line carries
// the detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid *service.InvalidInputError
		limited *service.RateLimitedError
	)

	switch {
	case errors.As(err, &invalid):
		docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, describeInvalid(invalid)).WriteError(w)
	case errors.As(err, &limited):
		apiErr := docsdk.NewAPIError(http.StatusTooManyRequests, docsdk.ErrorCodeTooManyAttempts, "too many attempts, try again later")
		apiErr.RetryAfter = limited.RetryAfter
		apiErr.WriteError(w)
	case errors.Is(err, service.ErrInvalidInput):
		docsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrUnauthorized):
		docsdk.ErrUnauthorized.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		docsdk.ErrForbidden.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		docsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrTooLarge):
		docsdk.ErrTooLarge.WriteError(w)
	default:
		if !errors.Is(err, service.ErrCryptoFailure) && !errors.Is(err, service.ErrStoreUnavailable) {
			slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		}
		docsdk.ErrServerError.WriteError(w)
	}
}

func describeInvalid(e *service.InvalidInputError) string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = string(v)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(parts, ", "))
}
