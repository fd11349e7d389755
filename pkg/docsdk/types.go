package docsdk

import "time"

// Document status values.
const (
	StatusUploaded  = "uploaded"
	StatusDelivered = "delivered"
	StatusArchived  = "archived"
)

// DocumentResponse describes a stored document. It never includes the
// content or any credential.
type DocumentResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	Status        string    `json:"status"`
	CipherVersion uint16    `json:"cipher_version"`
	HasPassword   bool      `json:"has_password"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeliverRequest is the body of POST /v1/documents/{id}/deliveries.
type DeliverRequest struct {
	// Admin mints an admin token that bypasses the download password.
	Admin bool `json:"admin,omitempty"`

	// TTLSeconds overrides the default token lifetime.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// DeliveryResponse carries the credentials for one delivery. Password is
// only present on customer deliveries and is never retrievable again.
type DeliveryResponse struct {
	DocumentID  string    `json:"document_id"`
	Token       string    `json:"token"`
	Password    string    `json:"password,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	DownloadURL string    `json:"download_url"`
}

// DownloadRequest is the body of POST /v1/downloads.
type DownloadRequest struct {
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

// Download is a decrypted document as returned by the service.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status indicates the overall health status ("ok" or "degraded")
	Status string `json:"status"`

	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version,omitempty"`

	// Checks is only populated by /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database  string `json:"database"`
	BlobStore string `json:"blob_store"`
	RateLimit string `json:"rate_limit"`
}
