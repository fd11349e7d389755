// Package blob stores encrypted document content. Implementations only ever
// see ciphertext.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob: not found")

// Store is an object store keyed by opaque strings.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error

	// Get returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backing bucket is reachable.
	Ping(ctx context.Context) error
}

// contentType is the content type blobs are stored with. Real content
// types live in the document record.
const contentType = "application/octet-stream"
