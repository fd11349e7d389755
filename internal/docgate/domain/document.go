package domain

import (
	"fmt"
	"time"
)

// DocumentStatus gates what may be done with a document.
type DocumentStatus string

const (
	StatusUploaded  DocumentStatus = "uploaded"
	StatusDelivered DocumentStatus = "delivered"
	StatusArchived  DocumentStatus = "archived" // downloads refused
)

// ParseDocumentStatus validates s.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	switch st := DocumentStatus(s); st {
	case StatusUploaded, StatusDelivered, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("unknown document status %q", s)
	}
}

// Downloadable reports whether content may be handed out in this status.
func (s DocumentStatus) Downloadable() bool {
	return s == StatusUploaded || s == StatusDelivered
}

// Document is the persisted record for one stored document. The content
// lives encrypted in the blob store under BlobKey.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64

	BlobKey       string
	CipherVersion uint16
	// CipherMeta is the encrypted blob's metadata (nonce, tag, AAD inputs)
	// as produced by cryptox.EncryptedBlob.MarshalMetadata.
	CipherMeta []byte

	// PasswordHash is the argon2id PHC string of the current download
	// password, empty until the first customer delivery.
	PasswordHash string

	Status      DocumentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeliveredAt *time.Time
}
