package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/blob"
	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/idx"
	"github.com/aussiebroadwan/docgate/pkg/sanitize"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxFileSize        = 10 << 20
	DefaultUploadAttempts     = 3
	DefaultUploadInitialDelay = 200 * time.Millisecond
)

// DefaultAllowedContentTypes is used when DocumentService.AllowedContentTypes is empty.
var DefaultAllowedContentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"text/plain",
}

type UploadInput struct {
	DocumentID  string
	Filename    string
	ContentType string
	Content     []byte
}

// DocumentService manages stored documents on behalf of admins.
type DocumentService struct {
	Store  store.Store
	Blobs  blob.Store
	Cipher *cryptox.DocumentCipher

	MaxFileSize         int64
	AllowedContentTypes []string

	// Timeout bounds each record and blob store call.
	Timeout time.Duration

	// UploadAttempts and UploadInitialDelay shape the blob upload retry.
	UploadAttempts     int
	UploadInitialDelay time.Duration

	Clock func() time.Time
}

func (s *DocumentService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Upload encrypts in.Content and stores it as document in.DocumentID. An
// existing document is superseded: its record points at the new blob, its
// download password is dropped and its old blob is removed.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (domain.Document, error) {
	log := slogx.FromContext(ctx)

	id, err := sanitizeField("document_id", in.DocumentID, sanitize.IdentifierOptions)
	if err != nil {
		return domain.Document{}, err
	}
	filename, err := sanitizeField("filename", in.Filename, sanitize.FilenameOptions)
	if err != nil {
		return domain.Document{}, err
	}
	if filename == "" {
		return domain.Document{}, &InvalidInputError{Field: "filename", Violations: []sanitize.Violation{sanitize.InvalidFormat}}
	}

	if len(in.Content) == 0 {
		return domain.Document{}, &InvalidInputError{Field: "file", Violations: []sanitize.Violation{sanitize.InvalidFormat}}
	}
	if int64(len(in.Content)) > s.maxFileSize() {
		return domain.Document{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(in.Content))
	}

	contentType, err := s.checkContentType(in.ContentType)
	if err != nil {
		return domain.Document{}, err
	}

	sealed, err := s.Cipher.Encrypt(in.Content, id, cryptox.BlobMeta{ContentType: contentType, Filename: filename})
	if err != nil {
		log.Error("crypto failure", "document_id", id, "op", "encrypt", "err", err)
		return domain.Document{}, errors.Join(ErrCryptoFailure, err)
	}
	meta, err := sealed.MarshalMetadata()
	if err != nil {
		return domain.Document{}, errors.Join(ErrCryptoFailure, err)
	}

	key := idx.BlobKey(id)
	if err := s.putWithRetry(ctx, key, sealed.Ciphertext); err != nil {
		log.Error("store unavailable", "store", "blob", "document_id", id, "err", err)
		return domain.Document{}, storeUnavailable("upload blob", err)
	}

	now := s.now()
	doc := domain.Document{
		ID:            id,
		Filename:      filename,
		ContentType:   contentType,
		Size:          int64(len(in.Content)),
		BlobKey:       key,
		CipherVersion: sealed.Version,
		CipherMeta:    meta,
		Status:        domain.StatusUploaded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var previous string
	err = s.withTx(ctx, func(tx store.Tx) error {
		prev, err := tx.Documents().GetDocument(ctx, id)
		switch {
		case err == nil:
			previous = prev.BlobKey
			doc.CreatedAt = prev.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.Documents().UpsertDocument(ctx, doc)
	})
	if err != nil {
		// the new blob is unreferenced now
		s.removeBlob(ctx, key, "record write failed")
		log.Error("store unavailable", "store", "records", "document_id", id, "err", err)
		return domain.Document{}, storeUnavailable("save document", err)
	}

	if previous != "" && previous != key {
		s.removeBlob(ctx, previous, "superseded")
	}

	log.Info("document uploaded", "document_id", id, "size", doc.Size, "cipher_version", doc.CipherVersion)
	return doc, nil
}

// Get returns the record of document id.
func (s *DocumentService) Get(ctx context.Context, id string) (domain.Document, error) {
	id, err := sanitizeField("document_id", id, sanitize.IdentifierOptions)
	if err != nil {
		return domain.Document{}, err
	}

	tctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	doc, err := s.Store.Documents().GetDocument(tctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Document{}, ErrNotFound
	}
	if err != nil {
		return domain.Document{}, storeUnavailable("get document", err)
	}
	return doc, nil
}

// List returns up to limit documents, most recently changed first.
func (s *DocumentService) List(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	docs, err := s.Store.Documents().ListDocuments(tctx, limit)
	if err != nil {
		return nil, storeUnavailable("list documents", err)
	}
	return docs, nil
}

// Archive blocks further downloads without deleting anything.
func (s *DocumentService) Archive(ctx context.Context, id string) error {
	id, err := sanitizeField("document_id", id, sanitize.IdentifierOptions)
	if err != nil {
		return err
	}

	tctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	err = s.Store.Documents().UpdateStatus(tctx, id, domain.StatusArchived, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storeUnavailable("archive document", err)
	}

	slogx.FromContext(ctx).Info("document archived", "document_id", id)
	return nil
}

// Delete removes the record, and with it the download password, then the
// blob. A blob that cannot be removed is queued for housekeeping.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	id, err := sanitizeField("document_id", id, sanitize.IdentifierOptions)
	if err != nil {
		return err
	}

	var key string
	err = s.withTx(ctx, func(tx store.Tx) error {
		doc, err := tx.Documents().GetDocument(ctx, id)
		if err != nil {
			return err
		}
		key = doc.BlobKey
		return tx.Documents().DeleteDocument(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storeUnavailable("delete document", err)
	}

	s.removeBlob(ctx, key, "document deleted")
	slogx.FromContext(ctx).Info("document deleted", "document_id", id)
	return nil
}

func (s *DocumentService) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()
	return s.Store.WithTx(ctx, fn)
}

func (s *DocumentService) maxFileSize() int64 {
	if s.MaxFileSize > 0 {
		return s.MaxFileSize
	}
	return DefaultMaxFileSize
}

// checkContentType normalises ct to its bare media type and checks it
// against the allow-list.
func (s *DocumentService) checkContentType(ct string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", &InvalidInputError{Field: "content_type", Violations: []sanitize.Violation{sanitize.InvalidFormat}}
	}

	allowed := s.AllowedContentTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedContentTypes
	}
	if !slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, mediaType) }) {
		return "", fmt.Errorf("%w: content type %q not allowed", ErrForbidden, mediaType)
	}
	return mediaType, nil
}

// putWithRetry uploads with exponential backoff, each attempt under its own
// timeout.
func (s *DocumentService) putWithRetry(ctx context.Context, key string, data []byte) error {
	attempts := s.UploadAttempts
	if attempts <= 0 {
		attempts = DefaultUploadAttempts
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.UploadInitialDelay
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = DefaultUploadInitialDelay
	}
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	op := func() error {
		actx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()
		return s.Blobs.Put(actx, key, data)
	}
	notify := func(err error, wait time.Duration) {
		slogx.FromContext(ctx).Warn("blob upload failed, retrying", "key", key, "wait", wait, "err", err)
	}
	return backoff.RetryNotify(op, b, notify)
}

// removeBlob deletes key, queueing it as an orphan when that fails.
func (s *DocumentService) removeBlob(ctx context.Context, key, reason string) {
	log := slogx.FromContext(ctx)

	dctx, cancel := withTimeout(ctx, s.Timeout)
	err := s.Blobs.Delete(dctx, key)
	cancel()
	if err == nil {
		return
	}

	log.Warn("blob delete failed, queueing orphan", "key", key, "reason", reason, "err", err)

	qctx, cancel := withTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	if err := s.Store.OrphanedBlobs().EnqueueOrphanedBlob(qctx, key, reason+": "+err.Error(), s.now()); err != nil {
		log.Error("failed to queue orphaned blob", "key", key, "err", err)
	}
}
