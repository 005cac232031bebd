// Package netx wraps outbound HTTP calls made by the server.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxFetchSize caps the body read by Fetch.
const MaxFetchSize = 5 << 20

// DefaultClient is used when Fetch is given a nil client.
var DefaultClient = &http.Client{Timeout: 10 * time.Second}

// Fetch GETs url and returns the body and its Content-Type. Non-2xx
// responses and bodies larger than MaxFetchSize are errors.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("fetch failed: %s; body: %s", resp.Status, string(b))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > MaxFetchSize {
		return nil, "", fmt.Errorf("fetch failed: body exceeds %d bytes", MaxFetchSize)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
