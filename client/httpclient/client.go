// Package httpclient is the storefront's outbound request wrapper. It keeps
// the session cookies in a jar, echoes the CSRF cookie on mutating requests,
// recovers once from a CSRF rejection and refreshes the access token on 401
// with a single in-flight refresh shared by every waiting request.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rpr91/Malandros/client/tokenstore"
	apperrors "github.com/rpr91/Malandros/common/errors"
	"github.com/rpr91/Malandros/pkg/csrf"
)

const (
	DefaultCSRFPath    = "/api/auth/csrf"
	DefaultRefreshPath = "/api/auth/refresh"

	refreshTimeout = 15 * time.Second
)

// ErrSessionExpired is returned to every request waiting on a refresh that failed.
var ErrSessionExpired = errors.New("session expired")

type Client struct {
	baseURL     *url.URL
	http        *http.Client
	tokens      *tokenstore.Store
	logger      *zap.Logger
	csrfPath    string
	refreshPath string
	refreshes   singleflight.Group
}

type Option func(*Client)

// WithHTTPClient swaps the underlying client. A nil Jar is replaced with a
// fresh cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithPaths(csrfPath, refreshPath string) Option {
	return func(c *Client) {
		c.csrfPath = csrfPath
		c.refreshPath = refreshPath
	}
}

func New(baseURL string, tokens *tokenstore.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if tokens == nil {
		tokens = tokenstore.New()
	}

	c := &Client{
		baseURL:     u,
		http:        &http.Client{Timeout: 30 * time.Second},
		tokens:      tokens,
		logger:      zap.NewNop(),
		csrfPath:    DefaultCSRFPath,
		refreshPath: DefaultRefreshPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Tokens exposes the access token store the client reads from.
func (c *Client) Tokens() *tokenstore.Store {
	return c.tokens
}

// Do sends one logical request. The returned response is the last attempt's;
// callers close its body.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.do(ctx, method, path, body, false, false)
}

// DoJSON marshals in (when non-nil), sends the request and decodes a 2xx body
// into out. Non-2xx answers come back as *apperrors.Error carrying the status
// and the server's "error" message.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}

	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, csrfRetried, authRetried bool) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	sentToken := c.tokens.Get()
	if sentToken != "" {
		req.Header.Set("Authorization", "Bearer "+sentToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusForbidden && isMutating(method) && !csrfRetried:
		drain(resp)
		c.logger.Debug("CSRF rejected, fetching a fresh token", zap.String("path", path))
		if err := c.fetchCSRF(ctx); err != nil {
			return nil, err
		}
		return c.do(ctx, method, path, body, true, authRetried)

	case resp.StatusCode == http.StatusUnauthorized && !authRetried && path != c.refreshPath:
		drain(resp)
		if err := c.refresh(ctx, sentToken); err != nil {
			return nil, err
		}
		return c.do(ctx, method, path, body, csrfRetried, true)
	}

	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if isMutating(method) {
		if token := c.CSRFToken(); token != "" {
			req.Header.Set(csrf.HeaderName, token)
		}
	}
	return req, nil
}

// CSRFToken returns the csrf-token cookie currently held in the jar.
func (c *Client) CSRFToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == csrf.CookieName {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) fetchCSRF(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.csrfPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	drain(resp)
	if resp.StatusCode >= 400 {
		return apperrors.New(resp.StatusCode, "fetch csrf token failed", nil)
	}
	return nil
}

type refreshResponse struct {
	AccessToken       string    `json:"accessToken"`
	AccessTokenExpiry time.Time `json:"accessTokenExpiry"`
}

// refresh exchanges the refresh cookie for a new access token. Callers that
// saw a 401 for the same stale token share one exchange; a caller whose
// token was already replaced just replays.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	ch := c.refreshes.DoChan(staleToken, func() (interface{}, error) {
		if current := c.tokens.Get(); current != "" && current != staleToken {
			return nil, nil
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		resp, err := c.do(rctx, http.MethodPost, c.refreshPath, nil, false, true)
		if err != nil {
			return nil, err
		}
		var out refreshResponse
		if err := decodeJSON(resp, &out); err != nil {
			return nil, err
		}
		if out.AccessToken == "" {
			return nil, errors.New("refresh response carried no access token")
		}
		c.tokens.Set(out.AccessToken, out.AccessTokenExpiry)
		c.logger.Debug("Access token refreshed")
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.tokens.Clear()
			c.logger.Info("Session refresh failed, clearing session", zap.Error(res.Err))
			return fmt.Errorf("%w: %v", ErrSessionExpired, res.Err)
		}
		return nil
	}
}

func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return apperrors.New(resp.StatusCode, body.Error, nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
