package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/docgate/internal/docgate/domain"
	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
)

// multipartOverhead is the room left for multipart framing on top of the
// file size limit.
const multipartOverhead = 1 << 20

const defaultListLimit = 100

type DocumentsHandler struct {
	DocumentService *service.DocumentService
	MaxFileSize     int64
}

// HandleUpload godoc
//
//	@Summary		Upload Document
//	@Description	Encrypts and stores a document under the given id. Uploading to an existing id supersedes the stored content and invalidates its download password.
//	@Tags			Documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string						true	"Document id"
//	@Param			file	formData	file						true	"Document content"
//	@Success		200		{object}	docsdk.DocumentResponse		"stored document"
//	@Failure		400		{object}	docsdk.APIError				"error, error_description"
//	@Failure		401		{object}	docsdk.APIError				"error, error_description"
//	@Failure		403		{object}	docsdk.APIError				"content type not allowed"
//	@Failure		413		{object}	docsdk.APIError				"file too large"
//	@Failure		429		{object}	docsdk.APIError				"too many failed admin key attempts"
//	@Failure		500		{object}	docsdk.APIError				"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents/{id} [put].
func (h *DocumentsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "multipart/form-data body required").WriteError(w)
		return
	}

	var (
		in    = service.UploadInput{DocumentID: r.PathValue("id")}
		found bool
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeBodyError(w, err)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		// one byte past the limit is enough to reject
		in.Content, err = io.ReadAll(io.LimitReader(part, h.maxFileSize()+1))
		_ = part.Close()
		if err != nil {
			writeBodyError(w, err)
			return
		}
		in.Filename = part.FileName()
		in.ContentType = part.Header.Get("Content-Type")
		if in.ContentType == "" || in.ContentType == "application/octet-stream" {
			in.ContentType = http.DetectContentType(in.Content)
		}
		found = true
		break
	}

	if !found {
		docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "file part is required").WriteError(w)
		return
	}

	doc, err := h.DocumentService.Upload(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleGet godoc
//
//	@Summary		Get Document
//	@Description	Returns the metadata of a stored document. Content and credentials are never included.
//	@Tags			Documents
//	@Produce		json
//	@Param			id	path		string					true	"Document id"
//	@Success		200	{object}	docsdk.DocumentResponse	"stored document"
//	@Failure		400	{object}	docsdk.APIError			"error, error_description"
//	@Failure		401	{object}	docsdk.APIError			"error, error_description"
//	@Failure		404	{object}	docsdk.APIError			"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents/{id} [get].
func (h *DocumentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.DocumentService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleList godoc
//
//	@Summary		List Documents
//	@Description	Lists stored documents, most recently updated first.
//	@Tags			Documents
//	@Produce		json
//	@Param			limit	query		int							false	"Maximum number of documents (default 100)"
//	@Success		200		{array}		docsdk.DocumentResponse		"stored documents"
//	@Failure		400		{object}	docsdk.APIError				"error, error_description"
//	@Failure		401		{object}	docsdk.APIError				"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents [get].
func (h *DocumentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "limit must be a positive integer").WriteError(w)
			return
		}
		limit = n
	}

	docs, err := h.DocumentService.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]docsdk.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleArchive godoc
//
//	@Summary		Archive Document
//	@Description	Marks a document as archived. Archived documents are kept but can no longer be downloaded.
//	@Tags			Documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"archived"
//	@Failure		401	{object}	docsdk.APIError	"error, error_description"
//	@Failure		404	{object}	docsdk.APIError	"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents/{id}/archive [post].
func (h *DocumentsHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.DocumentService.Archive(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete godoc
//
//	@Summary		Delete Document
//	@Description	Removes a document, its encrypted content and its download password.
//	@Tags			Documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"deleted"
//	@Failure		401	{object}	docsdk.APIError	"error, error_description"
//	@Failure		404	{object}	docsdk.APIError	"error, error_description"
//	@Security		AdminKey
//	@Router			/v1/documents/{id} [delete].
func (h *DocumentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.DocumentService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentsHandler) maxFileSize() int64 {
	if h.MaxFileSize > 0 {
		return h.MaxFileSize
	}
	return service.DefaultMaxFileSize
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		docsdk.ErrTooLarge.WriteError(w)
		return
	}
	docsdk.NewAPIError(http.StatusBadRequest, docsdk.ErrorCodeInvalidRequest, "malformed multipart body").WriteError(w)
}

func toDocumentResponse(d domain.Document) docsdk.DocumentResponse {
	return docsdk.DocumentResponse{
		ID:            d.ID,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		Size:          d.Size,
		Status:        string(d.Status),
		CipherVersion: d.CipherVersion,
		HasPassword:   d.PasswordHash != "",
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
