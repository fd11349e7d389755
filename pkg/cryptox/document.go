package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher versions. A version number is bound to one KDF + AEAD pair forever,
// stored blobs are decrypted with the version they were sealed under.
const (
	// VersionAESGCM derives a per-document key with HKDF-SHA256 and seals with
	// AES-256-GCM (12-byte nonce).
	VersionAESGCM uint16 = 1

	// VersionXChaCha derives a per-document key with HKDF-SHA256 and seals with
	// XChaCha20-Poly1305 (24-byte nonce).
	VersionXChaCha uint16 = 2

	// DefaultVersion is used for new blobs unless configured otherwise.
	DefaultVersion = VersionAESGCM

	// MinMasterKeySize is the minimum accepted master secret length in bytes.
	MinMasterKeySize = 32

	documentKeySize = 32
)

var (
	// ErrDecryptFailed is returned for any authentication failure: wrong
	// document, tampered ciphertext, nonce, tag or metadata.
	ErrDecryptFailed = errors.New("cryptox: document decryption failed")

	// ErrUnsupportedVersion is returned when a blob names a cipher version this
	// build does not know.
	ErrUnsupportedVersion = errors.New("cryptox: unsupported cipher version")

	// ErrWeakMasterKey is returned when the master secret is too short.
	ErrWeakMasterKey = errors.New("cryptox: master key must be at least 32 bytes")
)

type suite struct {
	label   string
	newAEAD func(key []byte) (cipher.AEAD, error)
}

var suites = map[uint16]suite{
	VersionAESGCM:  {label: "docgate/document-key/v1", newAEAD: newAESGCM},
	VersionXChaCha: {label: "docgate/document-key/v2", newAEAD: chacha20poly1305.NewX},
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SupportedVersion reports whether v names a known cipher version.
func SupportedVersion(v uint16) bool {
	_, ok := suites[v]
	return ok
}

// BlobMeta is the plaintext metadata carried next to an encrypted document.
type BlobMeta struct {
	ContentType string
	Filename    string
}

// EncryptedBlob is a sealed document. The ciphertext is kept in the blob
// store, everything else travels with the document record as JSON (see
// MarshalMetadata).
type EncryptedBlob struct {
	Version             uint16 `json:"version"`
	Nonce               []byte `json:"nonce"`
	Ciphertext          []byte `json:"-"`
	AuthTag             []byte `json:"auth_tag"`
	OriginalContentType string `json:"content_type"`
	OriginalFilename    string `json:"filename,omitempty"`
}

// MarshalMetadata encodes everything but the ciphertext.
func (b EncryptedBlob) MarshalMetadata() ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalMetadata decodes metadata written by MarshalMetadata. The returned
// blob has no ciphertext attached.
func UnmarshalMetadata(data []byte) (EncryptedBlob, error) {
	var b EncryptedBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return EncryptedBlob{}, fmt.Errorf("cryptox: decode blob metadata: %w", err)
	}
	return b, nil
}

// additionalData binds the version, the owning document and the metadata
// into the AEAD. Fields are length-prefixed so no two tuples share an encoding.
func (b EncryptedBlob) additionalData(documentID string) []byte {
	fields := []string{documentID, b.OriginalContentType, b.OriginalFilename}

	size := 2
	for _, f := range fields {
		size += 4 + len(f)
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint16(buf, b.Version)
	for _, f := range fields {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f))) // #nosec G115 - field lengths are bounded by upload limits
		buf = append(buf, f...)
	}
	return buf
}

// DocumentCipher seals documents under keys derived from a process-wide
// master secret. It is safe for concurrent use; the master key is never
// mutated after construction.
type DocumentCipher struct {
	master  []byte
	version uint16
}

// NewDocumentCipher returns a cipher that seals new blobs with version and can
// open blobs of every supported version.
func NewDocumentCipher(masterKey []byte, version uint16) (*DocumentCipher, error) {
	if len(masterKey) < MinMasterKeySize {
		return nil, ErrWeakMasterKey
	}
	if !SupportedVersion(version) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	master := make([]byte, len(masterKey))
	copy(master, masterKey)

	return &DocumentCipher{master: master, version: version}, nil
}

// Version returns the version used for new blobs.
func (c *DocumentCipher) Version() uint16 { return c.version }

// aead builds the AEAD for documentID under the given version.
func (c *DocumentCipher) aead(version uint16, documentID string) (cipher.AEAD, error) {
	s, ok := suites[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	info := make([]byte, 0, len(s.label)+len(documentID))
	info = append(info, s.label...)
	info = append(info, documentID...)

	kdf := hkdf.New(sha256.New, c.master, []byte(s.label), info)
	key := make([]byte, documentKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive document key: %w", err)
	}

	return s.newAEAD(key)
}

// Encrypt seals plaintext for documentID with a fresh random nonce.
func (c *DocumentCipher) Encrypt(plaintext []byte, documentID string, meta BlobMeta) (EncryptedBlob, error) {
	if documentID == "" {
		return EncryptedBlob{}, errors.New("cryptox: document id is required")
	}

	aead, err := c.aead(c.version, documentID)
	if err != nil {
		return EncryptedBlob{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedBlob{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := EncryptedBlob{
		Version:             c.version,
		Nonce:               nonce,
		OriginalContentType: meta.ContentType,
		OriginalFilename:    meta.Filename,
	}

	sealed := aead.Seal(nil, nonce, plaintext, blob.additionalData(documentID))

	// Seal appends the tag; keep it as its own field
	split := len(sealed) - aead.Overhead()
	blob.Ciphertext = sealed[:split:split]
	blob.AuthTag = sealed[split:]

	return blob, nil
}

// Decrypt opens blob for documentID. Any integrity failure returns
// ErrDecryptFailed and never partial plaintext; an unknown version returns
// ErrUnsupportedVersion.
func (c *DocumentCipher) Decrypt(blob EncryptedBlob, documentID string) ([]byte, error) {
	aead, err := c.aead(blob.Version, documentID)
	if err != nil {
		return nil, err
	}

	if len(blob.Nonce) != aead.NonceSize() || len(blob.AuthTag) != aead.Overhead() {
		return nil, ErrDecryptFailed
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.AuthTag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.AuthTag...)

	plaintext, err := aead.Open(nil, blob.Nonce, sealed, blob.additionalData(documentID))
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}
