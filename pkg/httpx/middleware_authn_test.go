package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

const adminKey = "admin-key-0123456789abcdefghijklmnop"

func newAdminHandler(t *testing.T) http.Handler {
	t.Helper()

	guard, err := ratelimit.New(ratelimit.Config{
		Store: ratelimit.NewMemoryStore(),
		Policy: ratelimit.Policy{
			Action:      "admin-auth",
			MaxAttempts: 3,
			Window:      time.Minute,
			Lockout:     time.Hour,
		},
	})
	require.NoError(t, err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, httpx.IsAdmin(r.Context()))
		require.Equal(t, "192.168.1.1", httpx.ClientIPFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	return httpx.AdminAuthMiddleware(httpx.AdminAuthConfig{
		KeyFingerprints: []string{cryptox.FingerprintToken("other-key"), cryptox.FingerprintToken(adminKey)},
		Guard:           guard,
	})(inner)
}

func adminRequest(key string) *http.Request {
	req := requestFrom("192.168.1.1:12345")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req
}

func TestAdminAuthMiddleware(t *testing.T) {
	t.Run("accepts a known key", func(t *testing.T) {
		h := newAdminHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest(adminKey))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing key is unauthorized", func(t *testing.T) {
		h := newAdminHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest(""))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("wrong keys lock the client out", func(t *testing.T) {
		h := newAdminHandler(t)

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, adminRequest("guess"))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest("guess"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "3600", rec.Header().Get("Retry-After"))

		// the right key does not bypass an active lockout
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest(adminKey))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("successful requests do not consume attempts", func(t *testing.T) {
		h := newAdminHandler(t)

		// two typos leave one attempt before the lockout
		for range 2 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, adminRequest("guess"))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		}

		for range 10 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, adminRequest(adminKey))
			require.Equal(t, http.StatusNoContent, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest("guess"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest(adminKey))
		require.Equal(t, http.StatusTooManyRequests, rec.Code, "successes did not launder the typos")
	})
}
