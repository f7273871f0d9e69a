// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/netutil"
	"github.com/bureau-foundation/chatsync/lib/secret"
	"github.com/bureau-foundation/chatsync/lib/version"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// ServerURL is the base URL of the chat server (e.g., "http://localhost:5000").
	ServerURL string

	// LocalUser is the signed-in user. It decides which side of a
	// direct message is the peer when decoding.
	LocalUser chat.UserID

	// Token is the bearer token sent with every request. The Client
	// takes ownership and releases it on Close. Nil sends no
	// Authorization header, for servers that authenticate by cookie.
	Token *secret.Buffer

	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an authenticated client for the chat server's HTTP API. It
// implements the orchestrator's Backend.
type Client struct {
	baseURL    string
	localUser  chat.UserID
	token      *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("messaging: ServerURL is required")
	}
	if config.LocalUser == "" {
		return nil, fmt.Errorf("messaging: LocalUser is required")
	}

	// Request URLs are built by concatenation onto the trimmed string
	// form; path segments are escaped individually by the callers.
	parsed, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid ServerURL %q: %w", config.ServerURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: ServerURL %q must be http or https", config.ServerURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.ServerURL, "/"),
		localUser:  config.LocalUser,
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// LocalUser returns the signed-in user.
func (c *Client) LocalUser() chat.UserID {
	return c.localUser
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests onto fresh connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Close releases the access token. The Client must not be used
// afterwards.
func (c *Client) Close() error {
	if c.token == nil {
		return nil
	}
	return c.token.Close()
}

// requestBody is an encoded request body and its content type.
type requestBody struct {
	contentType string
	data        []byte
}

func jsonBody(value any) (*requestBody, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
	}
	return &requestBody{contentType: "application/json", data: encoded}, nil
}

func formBody(values url.Values) *requestBody {
	return &requestBody{
		contentType: "application/x-www-form-urlencoded",
		data:        []byte(values.Encode()),
	}
}

// doRequest performs an HTTP request and returns the response body. A
// transport failure wraps chat.ErrNetworkFailure. A non-2xx response
// returns the body alongside an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, body *requestBody, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body.data)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		request.Header.Set("Content-Type", body.contentType)
	}
	if c.token != nil {
		request.Header.Set("Authorization", c.token.BearerAuthorization())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: %w: %s %s: %w", chat.ErrNetworkFailure, method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: %w: reading %s %s: %w", chat.ErrNetworkFailure, method, path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode}
	if jsonErr := json.Unmarshal(responseBody, apiErr); jsonErr != nil || apiErr.Code == "" {
		// Not the server's JSON error shape (a proxy error page, say).
		// Keep a bounded excerpt of the raw body for the message.
		apiErr.Code = ""
		apiErr.Message = netutil.Excerpt(responseBody)
	}
	c.logger.Debug("request failed",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"code", apiErr.Code,
	)
	return responseBody, apiErr
}

// getJSON performs a GET and decodes the JSON response into result.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("messaging: %w: GET %s: %v", chat.ErrMalformedPayload, path, err)
	}
	return nil
}

// postOK performs a POST whose response is the {"ok": bool} envelope.
// ok:false with a 2xx status is still a failure.
func (c *Client) postOK(ctx context.Context, path string, body *requestBody) error {
	responseBody, err := c.doRequest(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return err
	}
	return checkOK(path, responseBody)
}

func checkOK(path string, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var envelope struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("messaging: %w: POST %s: %v", chat.ErrMalformedPayload, path, err)
	}
	if envelope.OK != nil && !*envelope.OK {
		return &APIError{StatusCode: http.StatusOK, Code: envelope.Error}
	}
	return nil
}
