package service_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/blob"
	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/internal/docgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/jwtx"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

// harness wires every service against in-memory backends.
type harness struct {
	store    *sqlite.Store
	blobs    *blob.MemoryStore
	counters *ratelimit.MemoryStore
	cipher   *cryptox.DocumentCipher
	codec    *jwtx.Codec

	docs     *service.DocumentService
	delivery *service.DeliveryService
	download *service.DownloadService
	gate     *service.PasswordGate
}

var cheapArgon = cryptox.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func newHarness(t *testing.T, policy ratelimit.Policy) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	cipher, err := cryptox.NewDocumentCipher(bytes.Repeat([]byte{7}, 32), cryptox.DefaultVersion)
	require.NoError(t, err)

	codec, err := jwtx.NewCodec(bytes.Repeat([]byte{9}, 32), "docgate-test")
	require.NoError(t, err)

	hasher, err := cryptox.NewPasswordHasher([]byte("pepper"), cheapArgon)
	require.NoError(t, err)

	counters := ratelimit.NewMemoryStore()
	limiter, err := ratelimit.New(ratelimit.Config{Store: counters, Policy: policy})
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	gate := &service.PasswordGate{Store: st, Hasher: hasher, Timeout: time.Second}

	return &harness{
		store:    st,
		blobs:    blobs,
		counters: counters,
		cipher:   cipher,
		codec:    codec,
		gate:     gate,
		docs: &service.DocumentService{
			Store:              st,
			Blobs:              blobs,
			Cipher:             cipher,
			Timeout:            time.Second,
			UploadInitialDelay: time.Millisecond,
		},
		delivery: &service.DeliveryService{
			Store:       st,
			Codec:       codec,
			Gate:        gate,
			CustomerTTL: jwtx.DefaultCustomerTTL,
			AdminTTL:    jwtx.DefaultAdminTTL,
			Timeout:     time.Second,
		},
		download: &service.DownloadService{
			Store:   st,
			Blobs:   blobs,
			Cipher:  cipher,
			Codec:   codec,
			Gate:    gate,
			Limiter: limiter,
			Timeout: time.Second,
		},
	}
}

func downloadPolicy(maxAttempts int) ratelimit.Policy {
	return ratelimit.Policy{
		Action:      "download",
		MaxAttempts: maxAttempts,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
	}
}

func randomPDF(t *testing.T, size int) []byte {
	t.Helper()
	b := make([]byte, size)
	_, err := rand.Read(b)
	require.NoError(t, err)
	copy(b, "%PDF-1.7\n")
	return b
}

func (h *harness) upload(t *testing.T, id string, content []byte) {
	t.Helper()
	_, err := h.docs.Upload(context.Background(), service.UploadInput{
		DocumentID:  id,
		Filename:    "result.pdf",
		ContentType: "application/pdf",
		Content:     content,
	})
	require.NoError(t, err)
}
