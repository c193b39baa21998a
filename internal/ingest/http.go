package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPIngestor talks to a remote asset endpoint:
// POST {base}/api/assets (multipart "files") and
// DELETE {base}/api/assets?original=...&preview=...
type HTTPIngestor struct {
	BaseURL    string
	Token      string
	httpClient *http.Client
}

// NewHTTPIngestor creates a client for the asset endpoint at baseURL.
func NewHTTPIngestor(baseURL, token string) *HTTPIngestor {
	return &HTTPIngestor{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload posts files as one multipart request.
func (c *HTTPIngestor) Upload(ctx context.Context, files []File) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		if len(f.Data) >= MaxUploadSize {
			return UploadResult{}, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
		}
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return UploadResult{}, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return UploadResult{}, fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/assets", &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload assets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return UploadResult{}, fmt.Errorf("asset API returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return result, nil
}

// Delete removes an uploaded asset and its preview.
func (c *HTTPIngestor) Delete(ctx context.Context, originalURL, previewURL string) error {
	q := url.Values{}
	q.Set("original", originalURL)
	q.Set("preview", previewURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/assets?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("asset API returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPIngestor) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
