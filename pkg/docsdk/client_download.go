package docsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// Download exchanges a token and password for the decrypted document.
// Admin tokens need no password.
func (c *Client) Download(ctx context.Context, token, password string) (*Download, error) {
	body, err := json.Marshal(DownloadRequest{Token: token, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/downloads", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"}, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp, content)
	}

	dl := &Download{
		ContentType: resp.Header.Get("Content-Type"),
		Body:        content,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		dl.Filename = params["filename"]
	}
	return dl, nil
}
