package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs for document access grants.
const (
	// DefaultCustomerTTL is the lifetime of a customer download token.
	DefaultCustomerTTL = 7 * 24 * time.Hour

	// DefaultAdminTTL is the lifetime of an admin download token. Admin
	// tokens skip the password gate so they stay short-lived.
	DefaultAdminTTL = time.Hour
)

// tokenKind is carried in every token so a signature from another use of the
// same secret cannot be replayed as a document grant.
const tokenKind = "doc-access"

// Claims are the document access claims. The document id travels in sub.
type Claims struct {
	jwt.RegisteredClaims

	// Kind pins the token purpose, always tokenKind.
	Kind string `json:"knd"`

	// Admin grants bypass of the download password gate.
	Admin bool `json:"adm,omitempty"`
}

// NewDocumentClaims builds claims for documentID valid for ttl from now.
func NewDocumentClaims(documentID string, admin bool, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   documentID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind:  tokenKind,
		Admin: admin,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Validate checks the claims the JWT library does not know about. It is run
// by the parser after the signature and registered claims have passed.
func (c Claims) Validate() error {
	if c.Kind != tokenKind {
		return ErrWrongKind
	}
	if c.Subject == "" {
		return ErrMissingSubject
	}
	return nil
}

// Grant is what a verified token authorises.
type Grant struct {
	DocumentID string
	Admin      bool
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func (c Claims) grant() Grant {
	g := Grant{
		DocumentID: c.Subject,
		Admin:      c.Admin,
		TokenID:    c.ID,
	}
	if c.IssuedAt != nil {
		g.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		g.ExpiresAt = c.ExpiresAt.Time
	}
	return g
}
