// Package supabase talks to the hosted data service: table REST, auth,
// object storage and the realtime change feed.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npezzotti/diayouth/internal/retry"
	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"
	"github.com/tidwall/gjson"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %d %s", e.StatusCode, e.Message)
}

// retryable reports whether a failed idempotent call may be repeated.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
	Retry   retry.Policy
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
	timeout time.Duration
	rest    *supa.Client
	reads   retry.Policy
	log     *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, errors.New("supabase: url and key are required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("supabase: invalid url: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	base := strings.TrimRight(cfg.URL, "/")
	rest, err := supa.NewClient(base, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}

	return &Client{
		baseURL: base,
		key:     cfg.Key,
		http:    &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		rest:    rest,
		reads:   cfg.Retry,
		log:     logger,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) Key() string     { return c.key }

// newRequest builds a request against the service. token is the end user's
// access token; the service key is used when it is empty.
func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case io.Reader:
			r = b
		default:
			buf, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode request: %w", err)
			}
			r = bytes.NewReader(buf)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}

	if token == "" {
		token = c.key
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		if _, ok := body.(io.Reader); !ok {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	return req, nil
}

// send performs req and decodes a JSON answer into out when out is non-nil.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends a single request. Mutations go through here.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// get sends an idempotent request under the read retry policy.
func (c *Client) get(ctx context.Context, method, path, token string, body, out any) error {
	return retry.Do(ctx, c.reads, func(ctx context.Context) error {
		err := c.do(ctx, method, path, token, body, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return retry.Permanent(err)
		}
		return err
	})
}

// errorMessage picks the human readable message out of the service's
// various error shapes.
func errorMessage(raw []byte, fallback string) string {
	for _, path := range []string{"error_description", "msg", "message", "error"} {
		if v := gjson.GetBytes(raw, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return fallback
}
