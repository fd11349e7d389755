package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
)

const maxJSONBody = 64 << 10

type DeliveriesHandler struct {
	DeliveryService *service.DeliveryService

	// PublicBaseURL prefixes the download_url handed out with a delivery.
	PublicBaseURL string
}

// ServeHTTP godoc
//
//	@Summary		Deliver Document
//	@Description	Mints an access token for a stored document. Customer deliveries also rotate the download password, which is returned exactly once.
//	@Description	Admin deliveries mint a token that needs no password and leave the current password untouched.
//	@Tags			Deliveries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Document id"
//	@Param			request	body		docsdk.DeliverRequest		false	"Delivery options"
//	@Success		201		{object}	docsdk.DeliveryResponse		"token, password, expires_at, download_url"
//	@Failure		400		{object}	docsdk.APIError				"error, error_description"
//	@Failure		401		{object}	docsdk.APIError				"error, error_description"
//	@Failure		403		{object}	docsdk.APIError				"document archived"
//	@Failure		404		{object}	docsdk.APIError				"error, error_description"
//	@Failure		500		{object}	docsdk.APIError				"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents/{id}/deliveries [post].
func (h *DeliveriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req docsdk.DeliverRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "invalid JSON body").WriteError(w)
		return
	}
	if req.TTLSeconds < 0 {
		docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "ttl_seconds must not be negative").WriteError(w)
		return
	}

	d, err := h.DeliveryService.Deliver(r.Context(), r.PathValue("id"), service.DeliverOptions{
		Admin: req.Admin,
		TTL:   time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, docsdk.DeliveryResponse{
		DocumentID:  d.DocumentID,
		Token:       d.Token,
		Password:    d.Password,
		ExpiresAt:   d.ExpiresAt,
		DownloadURL: h.downloadURL(d.Token),
	})
}

// downloadURL is the GET link for the token. Customers still have to
// supply their password, so their link leads to a 401 until they do.
func (h *DeliveriesHandler) downloadURL(token string) string {
	base := strings.TrimRight(h.PublicBaseURL, "/")
	return base + "/v1/downloads?token=" + url.QueryEscape(token)
}
