package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestPasswordGate(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))
	ctx := context.Background()
	h.upload(t, "ORDER-1", []byte("content"))

	ok, err := h.gate.Verify(ctx, "ORDER-1", "anything")
	require.NoError(t, err)
	require.False(t, ok, "no password issued yet")

	d, err := h.delivery.Deliver(ctx, "ORDER-1", service.DeliverOptions{})
	require.NoError(t, err)

	ok, err = h.gate.Verify(ctx, "ORDER-1", d.Password)
	require.NoError(t, err)
	require.True(t, ok)

	for i := range len(d.Password) {
		wrong := []byte(d.Password)
		wrong[i] = '#'
		ok, err = h.gate.Verify(ctx, "ORDER-1", string(wrong))
		require.NoError(t, err)
		require.False(t, ok)
	}

	ok, err = h.gate.Verify(ctx, "ORDER-404", d.Password)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPasswordGate_StoreDown(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))
	require.NoError(t, h.store.Close())

	ok, err := h.gate.Verify(context.Background(), "ORDER-1", "pw")
	require.False(t, ok)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)
}

func TestPasswordGate_Issue(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))

	pw, hash, err := h.gate.Issue()
	require.NoError(t, err)
	require.Len(t, pw, 10)
	require.NotContains(t, hash, pw)
	require.Contains(t, hash, "$argon2id$")
}

func TestDeliver(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))
	ctx := context.Background()

	_, err := h.delivery.Deliver(ctx, "ORDER-404", service.DeliverOptions{})
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = h.delivery.Deliver(ctx, "../x", service.DeliverOptions{})
	require.ErrorIs(t, err, service.ErrInvalidInput)

	h.upload(t, "ORDER-1", []byte("content"))

	_, err = h.delivery.Deliver(ctx, "ORDER-1", service.DeliverOptions{TTL: service.MaxTokenTTL + time.Second})
	require.ErrorIs(t, err, service.ErrInvalidInput)

	before := time.Now()
	d, err := h.delivery.Deliver(ctx, "ORDER-1", service.DeliverOptions{})
	require.NoError(t, err)
	require.WithinDuration(t, before.Add(7*24*time.Hour), d.ExpiresAt, 2*time.Second)

	grant, err := h.codec.Verify(d.Token)
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", grant.DocumentID)
	require.False(t, grant.Admin)

	doc, err := h.docs.Get(ctx, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, "delivered", string(doc.Status))
	require.NotNil(t, doc.DeliveredAt)
}

func TestDeliver_ArchivedIsForbidden(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))
	ctx := context.Background()

	h.upload(t, "ORDER-1", []byte("content"))
	old, err := h.delivery.Deliver(ctx, "ORDER-1", service.DeliverOptions{})
	require.NoError(t, err)
	require.NoError(t, h.docs.Archive(ctx, "ORDER-1"))

	for _, opts := range []service.DeliverOptions{{}, {Admin: true}} {
		_, err := h.delivery.Deliver(ctx, "ORDER-1", opts)
		require.ErrorIs(t, err, service.ErrForbidden, "admin=%v", opts.Admin)
	}

	doc, err := h.docs.Get(ctx, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, "archived", string(doc.Status))

	// the earlier credentials stay blocked too
	_, err = h.download.Download(ctx, service.DownloadRequest{Token: old.Token, Password: old.Password, ClientIP: "203.0.113.5"})
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestDeliver_AuditLogKeepsAdminFlag(t *testing.T) {
	h := newHarness(t, downloadPolicy(5))
	h.upload(t, "ORDER-1", []byte("content"))

	var buf bytes.Buffer
	logger := slog.New(slogx.NewHandler(slogx.Config{Output: &buf, Format: "json"}))
	ctx := slogx.WithContext(context.Background(), logger)

	d, err := h.delivery.Deliver(ctx, "ORDER-1", service.DeliverOptions{Admin: true})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"admin":true`)

	buf.Reset()
	_, err = h.download.Download(ctx, service.DownloadRequest{Token: d.Token, ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"msg":"document downloaded"`)
	require.Contains(t, buf.String(), `"admin":true`)
	require.NotContains(t, buf.String(), slogx.Redacted)
}

// brokenCounters is a ratelimit.Store that is always unreachable.
type brokenCounters struct{}

var errCountersDown = errors.New("redis: connection refused")

func (brokenCounters) Update(context.Context, string, time.Duration, ratelimit.UpdateFunc) (ratelimit.Counter, error) {
	return ratelimit.Counter{}, errCountersDown
}

func (brokenCounters) Get(context.Context, string) (ratelimit.Counter, bool, error) {
	return ratelimit.Counter{}, false, errCountersDown
}

func (brokenCounters) Delete(context.Context, string) error { return errCountersDown }

func (brokenCounters) Ping(context.Context) error { return errCountersDown }

func newBrokenLimiter() (*ratelimit.Limiter, error) {
	return ratelimit.New(ratelimit.Config{Store: brokenCounters{}, Policy: downloadPolicy(5)})
}
