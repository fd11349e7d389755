package docgate_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/stretchr/testify/require"
)

func TestDocumentLifecycle(t *testing.T) {
	admin, public, cleanup := setupDocgateContainer(t)
	defer cleanup()
	ctx := t.Context()

	content := uploadPDF(t, admin, "ORDER-1001")

	// Admin delivery downloads without a password
	adminGrant, err := admin.Deliver(ctx, "ORDER-1001", docsdk.DeliverRequest{Admin: true})
	require.NoError(t, err)
	require.Empty(t, adminGrant.Password)
	require.True(t, strings.HasPrefix(adminGrant.DownloadURL, "https://docs.example.com/v1/downloads?token="))

	dl, err := public.Download(ctx, adminGrant.Token, "")
	require.NoError(t, err)
	require.Equal(t, content, dl.Body)
	require.Equal(t, "application/pdf", dl.ContentType)
	require.Equal(t, "ORDER-1001.pdf", dl.Filename)

	// Customer delivery needs the issued password
	customer, err := admin.Deliver(ctx, "ORDER-1001", docsdk.DeliverRequest{})
	require.NoError(t, err)
	require.Len(t, customer.Password, 10)

	_, err = public.Download(ctx, customer.Token, "")
	assertAPIError(t, err, http.StatusUnauthorized, "customer download without password")

	dl, err = public.Download(ctx, customer.Token, customer.Password)
	require.NoError(t, err)
	require.Equal(t, content, dl.Body)

	doc, err := admin.GetDocument(ctx, "ORDER-1001")
	require.NoError(t, err)
	require.Equal(t, docsdk.StatusDelivered, doc.Status)
	require.True(t, doc.HasPassword)

	docs, err := admin.ListDocuments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Archived documents refuse downloads
	require.NoError(t, admin.Archive(ctx, "ORDER-1001"))
	_, err = public.Download(ctx, adminGrant.Token, "")
	assertAPIError(t, err, http.StatusForbidden, "download of archived document")

	// Deleted documents are gone
	require.NoError(t, admin.Delete(ctx, "ORDER-1001"))
	_, err = admin.GetDocument(ctx, "ORDER-1001")
	assertAPIError(t, err, http.StatusNotFound, "get deleted document")
	_, err = public.Download(ctx, adminGrant.Token, "")
	assertAPIError(t, err, http.StatusNotFound, "download of deleted document")
}

func TestDocumentRejections(t *testing.T) {
	admin, public, cleanup := setupDocgateContainer(t)
	defer cleanup()
	ctx := t.Context()

	t.Run("admin routes need the key", func(t *testing.T) {
		_, err := public.ListDocuments(ctx, 0)
		require.ErrorContains(t, err, "admin key required")

		wrong := docsdk.NewClient(admin.BaseURL, docsdk.WithAdminKey("not-the-admin-key-at-all"))
		_, err = wrong.ListDocuments(ctx, 0)
		apiErr := assertAPIError(t, err, http.StatusUnauthorized, "wrong admin key")
		require.Equal(t, docsdk.ErrorCodeInvalidToken, apiErr.Code)
	})

	t.Run("content type outside the allow list", func(t *testing.T) {
		_, err := admin.Upload(ctx, "page", "page.html", "text/html", bytes.NewReader([]byte("<html></html>")))
		assertAPIError(t, err, http.StatusForbidden, "html upload")
	})

	t.Run("hostile document id", func(t *testing.T) {
		_, err := admin.Upload(ctx, "<script>", "x.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.7")))
		assertAPIError(t, err, http.StatusBadRequest, "script id")
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := admin.Deliver(ctx, "missing", docsdk.DeliverRequest{})
		assertAPIError(t, err, http.StatusNotFound, "deliver missing document")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := public.Download(ctx, "not-a-token", "")
		assertAPIError(t, err, http.StatusBadRequest, "malformed token")
	})
}
