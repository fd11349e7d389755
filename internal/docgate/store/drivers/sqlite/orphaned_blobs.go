package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
)

type orphanedBlobsRepo struct {
	q *queries
}

func (r *orphanedBlobsRepo) EnqueueOrphanedBlob(ctx context.Context, key, reason string, now time.Time) error {
	return r.q.EnqueueOrphanedBlob(ctx, key, reason, toMillis(now))
}

func (r *orphanedBlobsRepo) ListDueOrphanedBlobs(ctx context.Context, now time.Time, limit int) ([]domain.OrphanedBlob, error) {
	rows, err := r.q.ListDueOrphanedBlobs(ctx, toMillis(now), limit)
	if err != nil {
		return nil, err
	}

	blobs := make([]domain.OrphanedBlob, len(rows))
	for i, row := range rows {
		blobs[i] = mapOrphanedBlob(row)
	}
	return blobs, nil
}

func (r *orphanedBlobsRepo) RescheduleOrphanedBlob(ctx context.Context, key string, next time.Time, lastErr string) error {
	return mapAffected(r.q.RescheduleOrphanedBlob(ctx, key, toMillis(next), lastErr))
}

func (r *orphanedBlobsRepo) DeleteOrphanedBlob(ctx context.Context, key string) error {
	return r.q.DeleteOrphanedBlob(ctx, key)
}
