package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrPasswordMismatch is returned when a candidate does not match the hash.
	ErrPasswordMismatch = errors.New("cryptox: password does not match")

	// ErrInvalidHash is returned when an encoded hash cannot be parsed.
	ErrInvalidHash = errors.New("cryptox: invalid password hash")
)

// PasswordParams configures Argon2id.
type PasswordParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  int
}

// DefaultPasswordParams follows the OWASP minimum for argon2id (19 MiB, t=2, p=1).
var DefaultPasswordParams = PasswordParams{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

// DownloadPasswordLength is the length of generated download passwords.
const DownloadPasswordLength = 10

// downloadPasswordCharset omits look-alike characters (0/O, 1/l/I).
const downloadPasswordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// PasswordHasher produces and checks peppered Argon2id hashes in PHC format:
//
//	$argon2id$v=19$m=X,t=Y,p=Z$salt$hash
type PasswordHasher struct {
	pepper []byte
	params PasswordParams

	// dummy is verified against when no stored hash exists, so a lookup miss
	// costs the same as a wrong password.
	dummy string
}

// NewPasswordHasher builds a hasher with an explicit pepper. The pepper must be
// non-empty.
func NewPasswordHasher(pepper []byte, params PasswordParams) (*PasswordHasher, error) {
	if len(pepper) == 0 {
		return nil, errors.New("cryptox: password pepper is required")
	}
	if params.KeyLength == 0 || params.SaltLength <= 0 || params.Iterations == 0 || params.Memory == 0 || params.Parallelism == 0 {
		return nil, errors.New("cryptox: invalid argon2 parameters")
	}

	h := &PasswordHasher{
		pepper: append([]byte(nil), pepper...),
		params: params,
	}

	seed, err := GenerateToken(TokenSize256)
	if err != nil {
		return nil, err
	}
	if h.dummy, err = h.Hash(seed); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *PasswordHasher) derive(password string, salt []byte, iters, mem uint32, par uint8, keyLen uint32) []byte {
	input := make([]byte, 0, len(password)+len(h.pepper))
	input = append(input, password...)
	input = append(input, h.pepper...)
	return argon2.IDKey(input, salt, iters, mem, par, keyLen)
}

// Hash returns a PHC-encoded Argon2id hash of password with a fresh salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := h.derive(password, salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash in constant time. It
// returns ErrPasswordMismatch on a wrong password and ErrInvalidHash when
// encoded is malformed.
func (h *PasswordHasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")

	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	if len(parts) != 6 || parts[0] != "" {
		return fmt.Errorf("%w: expected 6 parts", ErrInvalidHash)
	}
	if parts[1] != "argon2id" {
		return fmt.Errorf("%w: not argon2id", ErrInvalidHash)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: wrong version", ErrInvalidHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %w", ErrInvalidHash, err)
	}
	if mem == 0 || iters == 0 || par == 0 {
		return fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return fmt.Errorf("%w: hash", ErrInvalidHash)
	}

	computed := h.derive(password, salt, iters, mem, par, uint32(len(expected))) // #nosec G115 - length comes from a 32 byte key

	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// VerifyMissing performs the same work as Verify against an internal dummy
// hash and always reports a mismatch. Use it when no hash is stored.
func (h *PasswordHasher) VerifyMissing(password string) error {
	_ = h.Verify(password, h.dummy)
	return ErrPasswordMismatch
}

// GenerateDownloadPassword returns a random password drawn from an
// unambiguous alphabet.
func GenerateDownloadPassword() (string, error) {
	limit := big.NewInt(int64(len(downloadPasswordCharset)))

	password := make([]byte, DownloadPasswordLength)
	for i := range password {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = downloadPasswordCharset[n.Int64()]
	}
	return string(password), nil
}
