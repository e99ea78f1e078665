package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/creditors/internal/fault"
)

const (
	// DefaultTimeout is used when neither the request nor the client sets one.
	DefaultTimeout = 15 * time.Second

	// expiryLeeway treats tokens about to expire as already expired.
	expiryLeeway = 30 * time.Second

	maxErrorBody = 4 << 10
)

// TokenSource supplies bearer tokens.
type TokenSource interface {
	// Token returns the current token. When refresh is true the source may
	// obtain a new one (log in again); otherwise it must not block on the user.
	Token(ctx context.Context, refresh bool) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context, bool) (string, error) {
	if s == "" {
		return "", errors.New("no token configured")
	}
	return string(s), nil
}

// HTTP is a Client backed by net/http.
type HTTP struct {
	client  *http.Client
	tokens  TokenSource
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	token string
}

// HTTPOption configures an HTTP client.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithDefaultTimeout sets the timeout used when a request sets none.
func WithDefaultTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.timeout = d }
}

// WithNow overrides the clock used for token expiry checks.
func WithNow(now func() time.Time) HTTPOption {
	return func(h *HTTP) { h.now = now }
}

// NewHTTP creates an HTTP client authenticating with tokens.
func NewHTTP(tokens TokenSource, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client:  &http.Client{},
		tokens:  tokens,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get implements Client.
func (h *HTTP) Get(ctx context.Context, uri string, opts ...Option) (*Response, error) {
	return h.do(ctx, http.MethodGet, uri, nil, opts)
}

// Post implements Client.
func (h *HTTP) Post(ctx context.Context, uri string, body any, opts ...Option) (*Response, error) {
	return h.do(ctx, http.MethodPost, uri, body, opts)
}

// Patch implements Client.
func (h *HTTP) Patch(ctx context.Context, uri string, body any, opts ...Option) (*Response, error) {
	return h.do(ctx, http.MethodPatch, uri, body, opts)
}

// Delete implements Client.
func (h *HTTP) Delete(ctx context.Context, uri string, opts ...Option) (*Response, error) {
	return h.do(ctx, http.MethodDelete, uri, nil, opts)
}

func (h *HTTP) do(ctx context.Context, method, uri string, body any, opts []Option) (*Response, error) {
	op := strings.ToLower(method) + " " + uri
	o := Apply(opts)

	token, err := h.bearer(ctx, o.AttemptLogin)
	if err != nil {
		return nil, fault.Wrap(fault.KindAuthentication, op, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	timeout := o.Timeout
	if timeout == 0 {
		timeout = h.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindServerSession, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindServerSession, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		h.forget(token)
		return nil, fault.New(fault.KindAuthentication, op, "server rejected credentials")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, fault.HTTPStatus(op, resp.StatusCode, string(data))
	}

	return &Response{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

// bearer returns a token that is not known to be expired.
func (h *HTTP) bearer(ctx context.Context, attemptLogin bool) (string, error) {
	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	if token == "" || h.expired(token) {
		var err error
		token, err = h.tokens.Token(ctx, attemptLogin && token != "")
		if err != nil {
			return "", err
		}
		if h.expired(token) {
			if !attemptLogin {
				return "", errors.New("token expired")
			}
			token, err = h.tokens.Token(ctx, true)
			if err != nil {
				return "", err
			}
		}
		h.mu.Lock()
		h.token = token
		h.mu.Unlock()
	}
	return token, nil
}

// forget drops a token the server refused.
func (h *HTTP) forget(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == token {
		h.token = ""
	}
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque (non-JWT) tokens are never considered expired.
func (h *HTTP) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !h.now().Add(expiryLeeway).Before(claims.ExpiresAt.Time)
}
