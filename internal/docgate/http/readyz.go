package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
)

const readyzTimeout = 2 * time.Second

// Pinger is any dependency readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Probes the record database, the blob store and the rate-limit store
//	@Description	Returns 503 when any of them is unreachable
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	docsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	docsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, db, blobs, counters Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		checks := &docsdk.HealthChecks{
			Database:  probe(ctx, db),
			BlobStore: probe(ctx, blobs),
			RateLimit: probe(ctx, counters),
		}

		status, code := "ok", http.StatusOK
		for _, c := range []string{checks.Database, checks.BlobStore, checks.RateLimit} {
			if c != "ok" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, docsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "ok"
	}
	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
