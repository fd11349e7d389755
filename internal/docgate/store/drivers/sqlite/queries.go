package sqlite

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

// documentRow mirrors the documents table. Times are unix milliseconds.
type documentRow struct {
	ID            string
	Filename      string
	ContentType   string
	Size          int64
	BlobKey       string
	CipherVersion int64
	CipherMeta    []byte
	PasswordHash  sql.NullString
	Status        string
	CreatedAt     int64
	UpdatedAt     int64
	DeliveredAt   sql.NullInt64
}

const documentColumns = `id, filename, content_type, size, blob_key, cipher_version, cipher_meta,
	password_hash, status, created_at, updated_at, delivered_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (documentRow, error) {
	var r documentRow
	err := s.Scan(
		&r.ID, &r.Filename, &r.ContentType, &r.Size, &r.BlobKey, &r.CipherVersion, &r.CipherMeta,
		&r.PasswordHash, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.DeliveredAt,
	)
	return r, err
}

const getDocument = `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

func (q *queries) GetDocument(ctx context.Context, id string) (documentRow, error) {
	return scanDocument(q.db.QueryRowContext(ctx, getDocument, id))
}

const listDocuments = `SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC, id LIMIT ?`

func (q *queries) ListDocuments(ctx context.Context, limit int) ([]documentRow, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []documentRow
	for rows.Next() {
		r, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const upsertDocument = `
INSERT INTO documents (` + documentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, NULL)
ON CONFLICT (id) DO UPDATE SET
	filename       = excluded.filename,
	content_type   = excluded.content_type,
	size           = excluded.size,
	blob_key       = excluded.blob_key,
	cipher_version = excluded.cipher_version,
	cipher_meta    = excluded.cipher_meta,
	password_hash  = NULL,
	status         = excluded.status,
	updated_at     = excluded.updated_at,
	delivered_at   = NULL`

func (q *queries) UpsertDocument(ctx context.Context, r documentRow) error {
	_, err := q.db.ExecContext(ctx, upsertDocument,
		r.ID, r.Filename, r.ContentType, r.Size, r.BlobKey, r.CipherVersion, r.CipherMeta,
		r.Status, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

const setDelivered = `
UPDATE documents SET
	password_hash = COALESCE(?, password_hash),
	status        = 'delivered',
	delivered_at  = ?,
	updated_at    = ?
WHERE id = ? AND status != 'archived'`

func (q *queries) SetDelivered(ctx context.Context, id string, hash sql.NullString, at int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, setDelivered, hash, at, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateStatus = `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`

func (q *queries) UpdateStatus(ctx context.Context, id, status string, at int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateStatus, status, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteDocument = `DELETE FROM documents WHERE id = ?`

func (q *queries) DeleteDocument(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDocument, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type orphanedBlobRow struct {
	BlobKey       string
	Attempts      int64
	LastError     string
	CreatedAt     int64
	NextAttemptAt int64
}

const enqueueOrphanedBlob = `
INSERT INTO orphaned_blobs (blob_key, attempts, last_error, created_at, next_attempt_at)
VALUES (?, 0, ?, ?, ?)
ON CONFLICT (blob_key) DO NOTHING`

func (q *queries) EnqueueOrphanedBlob(ctx context.Context, key, reason string, now int64) error {
	_, err := q.db.ExecContext(ctx, enqueueOrphanedBlob, key, reason, now, now)
	return err
}

const listDueOrphanedBlobs = `
SELECT blob_key, attempts, last_error, created_at, next_attempt_at
FROM orphaned_blobs
WHERE next_attempt_at <= ?
ORDER BY next_attempt_at, blob_key
LIMIT ?`

func (q *queries) ListDueOrphanedBlobs(ctx context.Context, now int64, limit int) ([]orphanedBlobRow, error) {
	rows, err := q.db.QueryContext(ctx, listDueOrphanedBlobs, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orphanedBlobRow
	for rows.Next() {
		var r orphanedBlobRow
		if err := rows.Scan(&r.BlobKey, &r.Attempts, &r.LastError, &r.CreatedAt, &r.NextAttemptAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const rescheduleOrphanedBlob = `
UPDATE orphaned_blobs SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
WHERE blob_key = ?`

func (q *queries) RescheduleOrphanedBlob(ctx context.Context, key string, next int64, lastErr string) (int64, error) {
	res, err := q.db.ExecContext(ctx, rescheduleOrphanedBlob, lastErr, next, key)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteOrphanedBlob = `DELETE FROM orphaned_blobs WHERE blob_key = ?`

func (q *queries) DeleteOrphanedBlob(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteOrphanedBlob, key)
	return err
}
