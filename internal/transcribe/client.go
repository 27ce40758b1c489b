// Package transcribe wraps the external speech-to-text service. The
// call is fully fallible: network errors, non-2xx statuses, and
// malformed bodies all surface as errors, never a crash.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ensemble-works/mpa-server/internal/apperr"
)

// Client turns an audio buffer into transcript text.
type Client interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

type HTTPClient struct {
	url string
	hc  *http.Client
}

// NewHTTPClient builds a client with a hard request timeout; the
// transcription service is never allowed to hold a request open.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{url: url, hc: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(audio))
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "build transcription request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "transcription call", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperr.Newf(apperr.Internal, "transcription service returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.Internal, "decode transcription response", err)
	}
	return out.Text, nil
}
