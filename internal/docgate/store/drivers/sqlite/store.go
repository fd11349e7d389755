package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	q   *queries
	dsn string
}

// NewStore opens the SQLite database at dsn (":memory:" for tests).
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		q:   newQueries(db),
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Documents() store.Documents         { return &documentsRepo{q: s.q} }
func (s *Store) OrphanedBlobs() store.OrphanedBlobs { return &orphanedBlobsRepo{q: s.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapAffected turns "no rows changed" into ErrNotFound.
func mapAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func mapDocument(row documentRow) domain.Document {
	d := domain.Document{
		ID:            row.ID,
		Filename:      row.Filename,
		ContentType:   row.ContentType,
		Size:          row.Size,
		BlobKey:       row.BlobKey,
		CipherVersion: uint16(row.CipherVersion),
		CipherMeta:    row.CipherMeta,
		Status:        domain.DocumentStatus(row.Status),
		CreatedAt:     fromMillis(row.CreatedAt),
		UpdatedAt:     fromMillis(row.UpdatedAt),
	}
	if row.PasswordHash.Valid {
		d.PasswordHash = row.PasswordHash.String
	}
	if row.DeliveredAt.Valid {
		at := fromMillis(row.DeliveredAt.Int64)
		d.DeliveredAt = &at
	}
	return d
}

func mapOrphanedBlob(row orphanedBlobRow) domain.OrphanedBlob {
	return domain.OrphanedBlob{
		Key:           row.BlobKey,
		Attempts:      int(row.Attempts),
		LastError:     row.LastError,
		CreatedAt:     fromMillis(row.CreatedAt),
		NextAttemptAt: fromMillis(row.NextAttemptAt),
	}
}
