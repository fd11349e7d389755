package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
)

// PasswordGate checks download passwords against the hash stored on the
// document record. It keeps no attempt state; brute force is bounded by the
// download rate limiter.
type PasswordGate struct {
	Store   store.Store
	Hasher  *cryptox.PasswordHasher
	Timeout time.Duration
}

// Issue generates a fresh download password and its hash. Only the hash is
// ever persisted.
func (g *PasswordGate) Issue() (password, hash string, err error) {
	password, err = cryptox.GenerateDownloadPassword()
	if err != nil {
		return "", "", err
	}
	hash, err = g.Hasher.Hash(password)
	if err != nil {
		return "", "", err
	}
	return password, hash, nil
}

// Verify reports whether candidate is the current password of documentID.
// Unknown documents and documents without a password cost the same argon2
// work as a real comparison and report false.
func (g *PasswordGate) Verify(ctx context.Context, documentID, candidate string) (bool, error) {
	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	doc, err := g.Store.Documents().GetDocument(ctx, documentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = g.Hasher.VerifyMissing(candidate)
		return false, nil
	case err != nil:
		return false, storeUnavailable("lookup password", err)
	case doc.PasswordHash == "":
		_ = g.Hasher.VerifyMissing(candidate)
		return false, nil
	}

	err = g.Hasher.Verify(candidate, doc.PasswordHash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return false, nil
	default:
		return false, errors.Join(ErrCryptoFailure, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
