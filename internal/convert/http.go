package convert

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

// HTTPConverter calls a Tika-style conversion endpoint: the source bytes go
// up in a PUT request and the converted text comes back in the body.
type HTTPConverter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPConverter creates a converter client for the given base URL.
func NewHTTPConverter(baseURL string, timeout time.Duration) *HTTPConverter {
	return &HTTPConverter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Convert uploads the source document and returns the extracted text. The
// content type is inferred from the file name's extension.
func (c *HTTPConverter) Convert(ctx context.Context, name string, src io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/convert", src)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", name, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(name))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("convert %s: converter returned %d: %s", name, resp.StatusCode, body)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("convert %s: read response: %w", name, err)
	}
	return string(text), nil
}

// Ping probes the converter's health endpoint.
func (c *HTTPConverter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("converter ping: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("converter ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("converter ping: status %d", resp.StatusCode)
	}
	return nil
}

func detectMimeType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
