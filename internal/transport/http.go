package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/remoteui/uisync/internal/remote"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultPollTimeout = 75 * time.Second
)

// HTTPTransport posts requests to <base>/json. Poll requests go to
// <base>/json?poll and may be held by the server until it has events.
type HTTPTransport struct {
	baseURL     string
	token       string
	client      *http.Client
	timeout     time.Duration
	pollTimeout time.Duration
}

var _ remote.RoundTripper = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport targeting baseURL (e.g.
// "http://127.0.0.1:8080"). Zero timeouts use the defaults.
func NewHTTPTransport(baseURL, token string, timeout, pollTimeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &HTTPTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		client:      &http.Client{},
		timeout:     timeout,
		pollTimeout: pollTimeout,
	}
}

// RoundTrip sends req and decodes the response. Network errors, HTTP
// status >= 300 and undecodable bodies are transport errors.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *remote.Request) (*remote.Response, error) {
	path, timeout := "/json", t.timeout
	if req.Channel == remote.ChannelPoll {
		path, timeout = "/json?poll", t.pollTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := json.Marshal(EncodeRequest(req))
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+t.token)
	}
	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var w Response
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("POST %s: decode response: %w", path, err)
	}
	return DecodeResponse(&w), nil
}
