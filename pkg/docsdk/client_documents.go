package docsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
)

// Upload stores content as document id, replacing any previous version.
func (c *Client) Upload(ctx context.Context, id, filename, contentType string, content io.Reader) (*DocumentResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPut, documentPath(id), &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()}, true)
	if err != nil {
		return nil, err
	}

	var doc DocumentResponse
	if err := decodeJSON(resp, &doc, http.StatusOK); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument returns the metadata of document id.
func (c *Client) GetDocument(ctx context.Context, id string) (*DocumentResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, documentPath(id), nil, nil, true)
	if err != nil {
		return nil, err
	}

	var doc DocumentResponse
	if err := decodeJSON(resp, &doc, http.StatusOK); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns up to limit documents, most recently updated first.
// A limit of zero uses the server default.
func (c *Client) ListDocuments(ctx context.Context, limit int) ([]DocumentResponse, error) {
	path := "/v1/documents"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil, true)
	if err != nil {
		return nil, err
	}

	var docs []DocumentResponse
	if err := decodeJSON(resp, &docs, http.StatusOK); err != nil {
		return nil, err
	}
	return docs, nil
}

// Archive blocks further downloads of document id.
func (c *Client) Archive(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, documentPath(id)+"/archive", nil, nil, true)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Delete removes document id and its content.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, documentPath(id), nil, nil, true)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Deliver mints download credentials for document id.
func (c *Client) Deliver(ctx context.Context, id string, req DeliverRequest) (*DeliveryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, documentPath(id)+"/deliveries", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"}, true)
	if err != nil {
		return nil, err
	}

	var delivery DeliveryResponse
	if err := decodeJSON(resp, &delivery, http.StatusCreated); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func documentPath(id string) string {
	return "/v1/documents/" + url.PathEscape(id)
}
