// Package apiclient is the single path to the banking backend. It attaches the
// bearer token, caches idempotent responses briefly, and recovers from an expired
// access token with at most one refresh-and-retry per request.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
)

const maxResponseBytes = 8 << 20

type Options struct {
	BaseURL          string
	Timeout          time.Duration
	ResponseCacheTTL time.Duration
	// PaymentPath marks requests whose failure after an expired session is ambiguous.
	PaymentPath string
	RefreshPath string
	HTTPClient  *http.Client
	// OnLoginRequired runs when a 401 could not be recovered, i.e. the UI must go to the login page.
	OnLoginRequired func(cause error)
	Now             func() time.Time
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous requests do not need a stored access token. One is still attached when present.
	Anonymous bool
	// SkipAuthRefresh disables the 401 refresh-and-retry.
	SkipAuthRefresh bool
	// BypassCache skips the response cache lookup; the fresh response is still stored.
	BypassCache bool
}

type Client struct {
	opts      Options
	http      *http.Client
	sessions  *sessions.Manager
	responses *responseCache
	refreshes singleflight.Group
}

func New(mgr *sessions.Manager, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PaymentPath == "" {
		opts.PaymentPath = "/transactions/payment"
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = "/auth/refresh-token"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.Timeout
	}
	c := &Client{opts: opts, http: hc, sessions: mgr, responses: newResponseCache(opts.ResponseCacheTTL, opts.Now)}
	mgr.OnChange(func(uint64) { c.responses.purge() })
	return c
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, force bool, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, BypassCache: force}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Do sends req and decodes a 2xx JSON body into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	return c.do(ctx, req, out, false)
}

func (c *Client) do(ctx context.Context, req Request, out any, retried bool) error {
	// generation first: a response must never be keyed under a newer session than its token
	gen := c.sessions.Generation()
	access := c.sessions.Tokens().Get(ctx, tokens.Access)
	if access == "" && !req.Anonymous {
		return ErrNotAuthenticated
	}

	cacheable := req.Method == http.MethodGet && c.opts.ResponseCacheTTL > 0
	var key string
	if cacheable {
		key = responseKey(gen, req.Method, req.Path, req.Query)
		if !req.BypassCache {
			if hit, ok := c.responses.get(key); ok {
				metrics.ResponseCacheHits.Inc()
				return decode(hit.body, hit.contentType, out)
			}
		}
	}

	status, body, contentType, err := c.send(ctx, req, access)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	switch {
	case status >= 200 && status < 300:
		if cacheable {
			c.responses.put(key, body, contentType)
		} else if req.Method != http.MethodGet {
			c.responses.purge()
		}
		return decode(body, contentType, out)

	case status == http.StatusUnauthorized && !retried && !req.SkipAuthRefresh && !req.Anonymous:
		if _, err := c.refresh(ctx, access); err != nil {
			return c.refreshFailed(req, err)
		}
		return c.do(ctx, req, out, true)
	}
	return newHTTPError(status, body)
}

func (c *Client) send(ctx context.Context, req Request, access string) (int, []byte, string, error) {
	u := c.opts.BaseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	var rdr io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return 0, nil, "", fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, u, rdr)
	if err != nil {
		return 0, nil, "", err
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Accept", "application/json")
	hr.Header.Set("X-Request-ID", uuid.NewString())
	if access != "" {
		hr.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(req.Method, "error").Inc()
		return 0, nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, "", fmt.Errorf("read body: %w", err)
	}
	metrics.BackendRequests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode/100)+"xx").Inc()
	logger.Debugf("backend %s %s -> %d (%d bytes)", req.Method, req.Path, resp.StatusCode, len(body))
	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}

func decode(body []byte, contentType string, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "json") {
		return &MalformedResponseError{Reason: "unexpected content type " + contentType}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Reason: "invalid JSON body", Cause: err}
	}
	return nil
}

func (c *Client) refreshFailed(req Request, cause error) error {
	metrics.TokenRefreshes.WithLabelValues("failure").Inc()
	if req.Method != http.MethodGet && strings.Contains(req.Path, c.opts.PaymentPath) {
		logger.Warnf("apiclient: refresh failed during payment submission: %v", cause)
		return &PaymentAmbiguousAuthError{Cause: cause}
	}
	logger.Warnf("apiclient: refresh failed, login required: %v", cause)
	if c.opts.OnLoginRequired != nil {
		c.opts.OnLoginRequired(cause)
	}
	return &AuthRefreshFailedError{Cause: cause}
}
