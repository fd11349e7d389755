package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
)

type documentsRepo struct {
	q *queries
}

func (r *documentsRepo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row, err := r.q.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, mapNotFound(err)
	}
	return mapDocument(row), nil
}

func (r *documentsRepo) ListDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	rows, err := r.q.ListDocuments(ctx, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, len(rows))
	for i, row := range rows {
		docs[i] = mapDocument(row)
	}
	return docs, nil
}

func (r *documentsRepo) UpsertDocument(ctx context.Context, d domain.Document) error {
	return r.q.UpsertDocument(ctx, documentRow{
		ID:            d.ID,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		Size:          d.Size,
		BlobKey:       d.BlobKey,
		CipherVersion: int64(d.CipherVersion),
		CipherMeta:    d.CipherMeta,
		Status:        string(d.Status),
		CreatedAt:     toMillis(d.CreatedAt),
		UpdatedAt:     toMillis(d.UpdatedAt),
	})
}

func (r *documentsRepo) SetDelivered(ctx context.Context, id, passwordHash string, at time.Time) error {
	n, err := r.q.SetDelivered(ctx, id, mapStringNull(passwordHash), toMillis(at))
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// nothing updated: unknown id or archived
	if _, err := r.q.GetDocument(ctx, id); err != nil {
		return mapNotFound(err)
	}
	return store.ErrArchived
}

func (r *documentsRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, at time.Time) error {
	return mapAffected(r.q.UpdateStatus(ctx, id, string(status), toMillis(at)))
}

func (r *documentsRepo) DeleteDocument(ctx context.Context, id string) error {
	return mapAffected(r.q.DeleteDocument(ctx, id))
}
