package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the minimum HMAC secret length in bytes.
const MinSecretSize = 32

var (
	// ErrInvalidToken is the only error callers should branch on. Every
	// verification failure matches it with errors.Is.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrWrongKind      = errors.New("jwtx: wrong token kind")
	ErrMissingSubject = errors.New("jwtx: missing subject")
)

// InvalidTokenError carries the internal reason a token was rejected. The
// reason is for audit logs only and must not reach the client.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("jwtx: invalid token (%s)", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

// CreateOptions control a minted token.
type CreateOptions struct {
	Admin bool
	TTL   time.Duration
}

// Codec mints and verifies HS256 document access tokens. Tokens are compact
// JWS strings: base64url segments joined by dots, safe in a URL query.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec returns a codec signing with secret. The secret must be at least
// MinSecretSize bytes.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("jwtx: token secret must be at least %d bytes", MinSecretSize)
	}
	if issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}

	return &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Create mints a token for documentID.
func (c *Codec) Create(documentID string, opts CreateOptions) (string, error) {
	if documentID == "" {
		return "", ErrMissingSubject
	}
	if opts.TTL <= 0 {
		return "", errors.New("jwtx: ttl must be positive")
	}

	claims := NewDocumentClaims(documentID, opts.Admin, opts.TTL, c.issuer, c.now().UTC())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign token: %w", err)
	}
	return token, nil
}

// Verify decodes token, checks its HMAC in constant time, then its expiry,
// issuer and kind. Any failure matches ErrInvalidToken.
func (c *Codec) Verify(token string) (Grant, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Grant{}, &InvalidTokenError{Reason: reason(err), Err: err}
	}

	return claims.grant(), nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_valid"
	case errors.Is(err, ErrWrongKind), errors.Is(err, ErrMissingSubject):
		return "claims"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	default:
		return "invalid"
	}
}
