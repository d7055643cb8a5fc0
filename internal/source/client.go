package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inkfeed/inkfeed/internal/domain"
)

const userAgent = "inkfeed/1.0"

// maxBodyBytes caps article and feed bodies so a misbehaving server cannot
// exhaust memory.
const maxBodyBytes = 2 << 20

// NewHTTPClient returns the client adapters share for API calls.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// GetJSON issues a GET and decodes the JSON response into v. Network errors,
// 5xx responses and 429 are marked transient for the orchestrator's retry
// policy; other non-2xx statuses are permanent.
func GetJSON(ctx context.Context, client *http.Client, url string, v any) error {
	body, _, err := GetBody(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetBody issues a GET and returns the response bytes and content type, with
// the same transiency classification as GetJSON.
func GetBody(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", domain.Transient(fmt.Errorf("request %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, "", domain.Transient(fmt.Errorf("%s returned %s", url, resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("%s returned %s: %s", url, resp.Status, strings.TrimSpace(string(payload)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", domain.Transient(fmt.Errorf("read %s: %w", url, err))
	}

	return body, resp.Header.Get("Content-Type"), nil
}
