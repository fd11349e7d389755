package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
)

// AdminAuthConfig configures AdminAuthMiddleware.
type AdminAuthConfig struct {
	// KeyFingerprints are cryptox.FingerprintToken values of the accepted
	// admin API keys. The keys themselves are never held in memory.
	KeyFingerprints []string

	// Guard bounds failed key presentations per client IP.
	Guard *ratelimit.Limiter

	TrustProxy bool
}

// AdminAuthMiddleware accepts requests carrying a known admin API key as a
// bearer token. Bad keys are counted against the client IP; a locked IP is
// refused before its key is even looked at. Accepted keys touch no limiter
// state.
func AdminAuthMiddleware(cfg AdminAuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)
			ip := ClientIP(r, cfg.TrustProxy)

			status, err := cfg.Guard.Status(ctx, ip)
			if err != nil {
				log.Error("admin auth guard unavailable", "err", err)
				WriteError(w, http.StatusInternalServerError, "server_error", "")
				return
			}
			if status.IsLocked {
				writeTooMany(w, status)
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			if !matchAny(raw, cfg.KeyFingerprints) {
				res, err := cfg.Guard.CheckAndLimit(ctx, ip)
				if err != nil {
					log.Error("admin auth guard unavailable", "err", err)
					WriteError(w, http.StatusInternalServerError, "server_error", "")
					return
				}
				if !res.Success {
					writeTooMany(w, res)
					return
				}
				_, _ = cfg.Guard.RecordAttempt(ctx, ip, false, map[string]string{"endpoint": r.URL.Path})

				log.Warn("admin key rejected", "client_ip", ip)
				writeBearerError(w, "invalid api key")
				return
			}

			ctx = contextWithAdmin(ctx, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

func matchAny(key string, fingerprints []string) bool {
	matched := false
	for _, fp := range fingerprints {
		// no early exit, every fingerprint is compared
		if cryptox.MatchFingerprint(key, fp) {
			matched = true
		}
	}
	return matched
}

func contextWithAdmin(ctx context.Context, ip string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyAdmin, true)
	ctx = context.WithValue(ctx, CtxKeyClientIP, ip)
	return ctx
}

// writeTooMany answers a denied limiter result with 429 and Retry-After.
func writeTooMany(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(res.RetryAfter())))
	WriteError(w, http.StatusTooManyRequests, "too_many_attempts", "Too many failed attempts. Please try again later.")
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
