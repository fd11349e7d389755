package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/aussiebroadwan/docgate/pkg/jwtx"
	"github.com/aussiebroadwan/docgate/pkg/sanitize"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
)

// MaxTokenTTL caps any requested token lifetime.
const MaxTokenTTL = 30 * 24 * time.Hour

type DeliverOptions struct {
	// Admin mints a token that skips the password gate. Only reachable from
	// admin-authenticated code paths.
	Admin bool

	// TTL overrides the default lifetime for the token kind.
	TTL time.Duration
}

// Delivery holds the credentials handed to a recipient. Password is only
// set for customer deliveries and cannot be recovered later.
type Delivery struct {
	DocumentID string
	Token      string
	Password   string
	ExpiresAt  time.Time
}

// DeliveryService mints download credentials for stored documents.
type DeliveryService struct {
	Store store.Store
	Codec *jwtx.Codec
	Gate  *PasswordGate
	Clock func() time.Time

	CustomerTTL time.Duration
	AdminTTL    time.Duration

	Timeout time.Duration
}

// Deliver mints a token for documentID. Customer deliveries also rotate
// the download password; any previously issued password stops working.
func (s *DeliveryService) Deliver(ctx context.Context, documentID string, opts DeliverOptions) (Delivery, error) {
	id, err := sanitizeField("document_id", documentID, sanitize.IdentifierOptions)
	if err != nil {
		return Delivery{}, err
	}
	if opts.TTL < 0 || opts.TTL > MaxTokenTTL {
		return Delivery{}, &InvalidInputError{Field: "ttl", Violations: []sanitize.Violation{sanitize.InvalidFormat}}
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.CustomerTTL
		if opts.Admin {
			ttl = s.AdminTTL
		}
	}

	var password, hash string
	if !opts.Admin {
		password, hash, err = s.Gate.Issue()
		if err != nil {
			return Delivery{}, errors.Join(ErrCryptoFailure, err)
		}
	}

	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}

	tctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	// hash is empty for admin deliveries, which leaves the password alone
	err = s.Store.Documents().SetDelivered(tctx, id, hash, now)
	if errors.Is(err, store.ErrNotFound) {
		return Delivery{}, ErrNotFound
	}
	if errors.Is(err, store.ErrArchived) {
		slogx.FromContext(ctx).Warn("delivery refused", "document_id", id, "reason", "archived")
		return Delivery{}, ErrForbidden
	}
	if err != nil {
		return Delivery{}, storeUnavailable("mark delivered", err)
	}

	token, err := s.Codec.Create(id, jwtx.CreateOptions{Admin: opts.Admin, TTL: ttl})
	if err != nil {
		return Delivery{}, errors.Join(ErrCryptoFailure, err)
	}

	slogx.FromContext(ctx).Info("document delivered", "document_id", id, "admin", opts.Admin, "ttl", ttl)

	return Delivery{
		DocumentID: id,
		Token:      token,
		Password:   password,
		ExpiresAt:  now.Add(ttl).Truncate(time.Second),
	}, nil
}
