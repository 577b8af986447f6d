// Package transport executes provider HTTP calls and maps failures onto
// pipeline error kinds.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/feichai0017/factcheck-gateway/internal/models"
)

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 64 * 1024

// NewJSONRequest builds a POST carrying body as JSON.
func NewJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// GetJSON issues a GET through client and decodes the JSON response into
// out. header is applied to the request as-is.
func GetJSON(ctx context.Context, client *http.Client, url string, header http.Header, provider string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := Do(client, req, provider)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", provider, err)
	}
	return nil
}

// Do sends req and returns the response with its body open. Transport
// failures and non-2xx statuses become ProviderRequestFailed; the body is
// closed on those paths.
func Do(client *http.Client, req *http.Request, provider string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, models.NewError(models.ErrProviderRequestFailed,
			fmt.Sprintf("%s request failed", provider), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, models.Errorf(models.ErrProviderRequestFailed,
			"%s returned status %d: %s", provider, resp.StatusCode, ReadErrorBody(resp.Body))
	}
	return resp, nil
}

// ReadErrorBody reads a bounded prefix of body for error messages.
func ReadErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(bytes.TrimSpace(data))
}
