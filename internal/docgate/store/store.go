package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrArchived is returned when a write is refused because the document
	// is archived.
	ErrArchived = errors.New("store: document archived")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a Tx can hand out the same repos bound to one
// transaction.
type Store interface {
	Documents() Documents
	OrphanedBlobs() OrphanedBlobs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Documents interface {
	// GetDocument returns ErrNotFound for unknown ids.
	GetDocument(ctx context.Context, id string) (domain.Document, error)

	// ListDocuments returns up to limit documents, most recently updated first.
	ListDocuments(ctx context.Context, limit int) ([]domain.Document, error)

	// UpsertDocument stores d. Replacing an existing document keeps its
	// created_at, clears the password hash and delivery time, and resets the
	// status to d.Status.
	UpsertDocument(ctx context.Context, d domain.Document) error

	// SetDelivered stores a new password hash (empty keeps the current one)
	// and marks the document delivered. Archived documents are left as they
	// are and return ErrArchived.
	SetDelivered(ctx context.Context, id, passwordHash string, at time.Time) error

	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, at time.Time) error

	// DeleteDocument returns ErrNotFound when nothing was deleted.
	DeleteDocument(ctx context.Context, id string) error
}

type OrphanedBlobs interface {
	// EnqueueOrphanedBlob records key for a later deletion retry. Enqueuing
	// a key twice keeps the first record.
	EnqueueOrphanedBlob(ctx context.Context, key, reason string, now time.Time) error

	// ListDueOrphanedBlobs returns blobs whose next attempt is at or before now.
	ListDueOrphanedBlobs(ctx context.Context, now time.Time, limit int) ([]domain.OrphanedBlob, error)

	RescheduleOrphanedBlob(ctx context.Context, key string, next time.Time, lastErr string) error

	DeleteOrphanedBlob(ctx context.Context, key string) error
}
