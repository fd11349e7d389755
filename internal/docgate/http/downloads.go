package http

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
)

type DownloadsHandler struct {
	DownloadService *service.DownloadService
	TrustProxy      bool
}

// HandlePost godoc
//
//	@Summary		Download Document
//	@Description	Exchanges an access token, plus the download password for customer tokens, for the decrypted document.
//	@Description	Failed attempts are counted per client address; too many lock the client out.
//	@Tags			Downloads
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		octet-stream
//	@Param			request	body		docsdk.DownloadRequest	true	"token and password"
//	@Success		200		{file}		binary					"document content"
//	@Failure		400		{object}	docsdk.APIError			"error, error_description"
//	@Failure		401		{object}	docsdk.APIError			"invalid credentials"
//	@Failure		403		{object}	docsdk.APIError			"document archived"
//	@Failure		404		{object}	docsdk.APIError			"document not found"
//	@Failure		429		{object}	docsdk.APIError			"too many attempts"
//	@Failure		500		{object}	docsdk.APIError			"error, error_description"
//	@Router			/v1/downloads [post].
func (h *DownloadsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req docsdk.DownloadRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "invalid form body").WriteError(w)
			return
		}
		req.Token = r.PostForm.Get("token")
		req.Password = r.PostForm.Get("password")
	default:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "invalid JSON body").WriteError(w)
			return
		}
	}

	h.serve(w, r, req)
}

// HandleGet godoc
//
//	@Summary		Download Document by Link
//	@Description	Link form of the download for admin tokens, which need no password. Customer tokens are refused here with 401.
//	@Tags			Downloads
//	@Produce		octet-stream
//	@Param			token	query		string			true	"Access token"
//	@Success		200		{file}		binary			"document content"
//	@Failure		400		{object}	docsdk.APIError	"error, error_description"
//	@Failure		401		{object}	docsdk.APIError	"invalid credentials"
//	@Failure		403		{object}	docsdk.APIError	"document archived"
//	@Failure		429		{object}	docsdk.APIError	"too many attempts"
//	@Router			/v1/downloads [get].
func (h *DownloadsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, docsdk.DownloadRequest{Token: r.URL.Query().Get("token")})
}

func (h *DownloadsHandler) serve(w http.ResponseWriter, r *http.Request, req docsdk.DownloadRequest) {
	ip := httpx.ClientIP(r, h.TrustProxy)
	ctx := slogx.With(r.Context(), "route", "download")

	dl, err := h.DownloadService.Download(ctx, service.DownloadRequest{
		Token:    req.Token,
		Password: req.Password,
		ClientIP: ip,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Body)))
	w.Header().Set("Content-Disposition", contentDisposition(dl.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Body)
}

func contentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	// not representable as a quoted-string
	return "attachment; filename=\"" + strings.Map(asciiOnly, filename) + "\""
}

func asciiOnly(r rune) rune {
	if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
		return '_'
	}
	return r
}
