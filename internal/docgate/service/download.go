package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/blob"
	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/jwtx"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/aussiebroadwan/docgate/pkg/sanitize"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
)

type DownloadRequest struct {
	Token    string
	Password string

	// ClientIP keys the download rate limit.
	ClientIP string
}

// Download is a decrypted document ready to be written to the client.
type Download struct {
	DocumentID  string
	Filename    string
	ContentType string
	Body        []byte
	Admin       bool
}

// DownloadService runs the download pipeline: sanitize, rate limit, verify
// token, verify password (customers only), load, decrypt.
type DownloadService struct {
	Store   store.Store
	Blobs   blob.Store
	Cipher  *cryptox.DocumentCipher
	Codec   *jwtx.Codec
	Gate    *PasswordGate
	Limiter *ratelimit.Limiter

	// Timeout bounds each record and blob store call.
	Timeout time.Duration
}

// Download returns the plaintext of the document named by req.Token.
//
// Every request that passes the rate limit check is recorded: failures
// extend the failure streak, and only a fully successful download records
// a success.
func (s *DownloadService) Download(ctx context.Context, req DownloadRequest) (Download, error) {
	log := slogx.FromContext(ctx)

	token, err := sanitizeField("token", req.Token, sanitize.TokenOptions)
	if err != nil {
		return Download{}, err
	}
	password, err := sanitizeField("password", req.Password, sanitize.PasswordOptions)
	if err != nil {
		return Download{}, err
	}

	check, err := s.Limiter.CheckAndLimit(ctx, req.ClientIP)
	if errors.Is(err, ratelimit.ErrEmptyIdentifier) {
		return Download{}, &InvalidInputError{Field: "client_ip", Violations: []sanitize.Violation{sanitize.InvalidFormat}}
	}
	if err != nil {
		log.Error("store unavailable", "store", "rate_limit", "client_ip", req.ClientIP, "err", err)
		return Download{}, storeUnavailable("rate limit", err)
	}
	if !check.Success {
		log.Warn("download denied", "reason", "rate_limited", "client_ip", req.ClientIP, "locked", check.IsLocked)
		return Download{}, &RateLimitedError{RetryAfter: check.RetryAfter(), Locked: check.IsLocked}
	}

	dl, reason, err := s.authorizeAndLoad(ctx, token, password)
	if err != nil {
		s.record(ctx, req.ClientIP, false, reason)
		log.Warn("download denied", "reason", reason, "client_ip", req.ClientIP, "document_id", dl.DocumentID)
		return Download{}, err
	}

	s.record(ctx, req.ClientIP, true, "")
	log.Info("document downloaded", "document_id", dl.DocumentID, "admin", dl.Admin, "client_ip", req.ClientIP)
	return dl, nil
}

// authorizeAndLoad returns the document, or an error with a short reason
// for the audit log. On failure the returned Download only carries the
// document id, if known.
func (s *DownloadService) authorizeAndLoad(ctx context.Context, token, password string) (Download, string, error) {
	grant, err := s.Codec.Verify(token)
	if err != nil {
		var ite *jwtx.InvalidTokenError
		reason := "token"
		if errors.As(err, &ite) {
			reason = "token_" + ite.Reason
		}
		return Download{}, reason, ErrUnauthorized
	}

	dl := Download{DocumentID: grant.DocumentID, Admin: grant.Admin}

	if !grant.Admin {
		ok, err := s.Gate.Verify(ctx, grant.DocumentID, password)
		if err != nil {
			return dl, "password_lookup", err
		}
		if !ok {
			return dl, "password", ErrUnauthorized
		}
	}

	doc, err := s.loadDocument(ctx, grant.DocumentID)
	if err != nil {
		return dl, "document", err
	}
	if !doc.Status.Downloadable() {
		return dl, "status_" + string(doc.Status), ErrForbidden
	}

	body, err := s.decrypt(ctx, doc)
	if err != nil {
		return dl, "content", err
	}

	dl.Filename = doc.Filename
	dl.ContentType = doc.ContentType
	dl.Body = body
	return dl, "", nil
}

func (s *DownloadService) loadDocument(ctx context.Context, id string) (domain.Document, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	doc, err := s.Store.Documents().GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Document{}, ErrNotFound
	}
	if err != nil {
		return domain.Document{}, storeUnavailable("get document", err)
	}
	return doc, nil
}

func (s *DownloadService) decrypt(ctx context.Context, doc domain.Document) ([]byte, error) {
	log := slogx.FromContext(ctx)

	sealed, err := cryptox.UnmarshalMetadata(doc.CipherMeta)
	if err != nil {
		log.Error("crypto failure", "document_id", doc.ID, "op", "metadata", "err", err)
		return nil, errors.Join(ErrCryptoFailure, err)
	}

	bctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	sealed.Ciphertext, err = s.Blobs.Get(bctx, doc.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		log.Error("document blob missing", "document_id", doc.ID, "key", doc.BlobKey)
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error("store unavailable", "store", "blob", "document_id", doc.ID, "err", err)
		return nil, storeUnavailable("get blob", err)
	}

	plaintext, err := s.Cipher.Decrypt(sealed, doc.ID)
	if err != nil {
		log.Error("crypto failure", "document_id", doc.ID, "op", "decrypt", "version", sealed.Version, "err", err)
		return nil, errors.Join(ErrCryptoFailure, err)
	}
	return plaintext, nil
}

func (s *DownloadService) record(ctx context.Context, ip string, success bool, reason string) {
	var meta map[string]string
	if reason != "" {
		meta = map[string]string{"reason": reason}
	}
	if _, err := s.Limiter.RecordAttempt(ctx, ip, success, meta); err != nil {
		slogx.FromContext(ctx).Error("failed to record download attempt", "client_ip", ip, "err", err)
	}
}
