package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Per-call timeout applied on top of the dispatcher's context.
const httpTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: httpTimeout}

// postJSON delivers a JSON payload and maps the response to the transport
// error taxonomy: network failures and 5xx are transient, 404 and 410 mean
// the endpoint is gone for good.
func postJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return Transient("failed to marshal payload: %v", err)
	}
	return post(ctx, "POST", url, bytes.NewReader(body), "application/json", headers)
}

// postForm delivers a form-encoded payload with the same error mapping.
func postForm(ctx context.Context, url string, form string, headers map[string]string) error {
	return post(ctx, "POST", url, strings.NewReader(form), "application/x-www-form-urlencoded", headers)
}

func post(ctx context.Context, method, url string, body io.Reader, contentType string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Transient("failed to create request: %v", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "Pulsewatch/1.0")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Transient("request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return statusToError(resp.StatusCode)
}

func statusToError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return Permanent("endpoint returned status %d", code)
	default:
		return Transient("endpoint returned status %d", code)
	}
}
