package docgate_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/stretchr/testify/require"
)

func TestDownloadLockout(t *testing.T) {
	admin, public, cleanup := setupDocgateContainer(t)
	defer cleanup()
	ctx := t.Context()

	uploadPDF(t, admin, "INV-42")

	grant, err := admin.Deliver(ctx, "INV-42", docsdk.DeliverRequest{})
	require.NoError(t, err)

	// Correct downloads never use up the failure budget
	for range 2 * downloadMaxAttempts {
		_, err := public.Download(ctx, grant.Token, grant.Password)
		require.NoError(t, err)
	}

	for i := range downloadMaxAttempts {
		_, err := public.Download(ctx, grant.Token, "WRONGPASS0")
		assertAPIError(t, err, http.StatusUnauthorized, "wrong password attempt")
		t.Logf("attempt %d rejected", i+1)
	}

	// The correct password does not bypass an active lockout
	_, err = public.Download(ctx, grant.Token, grant.Password)
	apiErr := assertAPIError(t, err, http.StatusTooManyRequests, "download while locked")
	require.Equal(t, docsdk.ErrorCodeTooManyAttempts, apiErr.Code)
	require.Greater(t, apiErr.RetryAfter, 25*time.Minute)

	// Admin calls are counted separately from downloads
	_, err = admin.GetDocument(ctx, "INV-42")
	require.NoError(t, err)
}
