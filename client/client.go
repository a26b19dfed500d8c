// Package client is a Go client for the Virtus REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"virtus/internal/apperr"
)

// APIError is returned for every failed call. Status is 0 when the server
// could not be reached.
type APIError struct {
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the Err sentinels by kind, so errors.Is(err,
// ErrAlreadyConsumed) works on the client side too.
func (e *APIError) Is(target error) bool {
	if t, ok := target.(*apperr.Error); ok {
		return t.Kind == e.Kind
	}
	return false
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for later calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.doWithHeaders(ctx, method, path, nil, in, out)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &APIError{Kind: apperr.KindInvalidInput, Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Kind: apperr.KindInvalidInput, Message: "could not build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: apperr.KindConnectionFailure, Message: apperr.ErrConnectionFailure.Message, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: apperr.KindConnectionFailure, Message: apperr.ErrConnectionFailure.Message, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Kind: apperr.KindInternal, Message: "unexpected response body", Err: err}
	}
	return nil
}

func decodeError(status int, raw []byte) *APIError {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &APIError{Status: status, Kind: kindForStatus(status), Message: http.StatusText(status)}
	}
	kind := apperr.ParseKind(body.Kind)
	if body.Kind == "" {
		kind = kindForStatus(status)
	}
	return &APIError{Status: status, Kind: kind, Message: body.Error}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindInvalidInput
	case http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusTooManyRequests:
		return apperr.KindRateLimited
	}
	return apperr.KindInternal
}
