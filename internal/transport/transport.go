// Package transport defines the authenticated request primitives the wallet
// core needs from the network, and an implementation on net/http.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client issues authenticated requests to the server.
//
// Failures are returned as *fault.Error values of kind Authentication
// (no usable credentials), ServerSession (the request could not be
// completed) or HTTP (the server answered with a non-2xx status).
type Client interface {
	Get(ctx context.Context, uri string, opts ...Option) (*Response, error)
	Post(ctx context.Context, uri string, body any, opts ...Option) (*Response, error)
	Patch(ctx context.Context, uri string, body any, opts ...Option) (*Response, error)
	Delete(ctx context.Context, uri string, opts ...Option) (*Response, error)
}

// Options are per-request settings.
type Options struct {
	// Timeout bounds the whole request. Zero uses the client default.
	Timeout time.Duration

	// AttemptLogin allows the client to obtain fresh credentials when the
	// current ones are missing or expired.
	AttemptLogin bool
}

// Option configures a single request.
type Option func(*Options)

// WithTimeout bounds the request duration.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithAttemptLogin allows or forbids a login attempt for the request.
func WithAttemptLogin(attempt bool) Option {
	return func(o *Options) { o.AttemptLogin = attempt }
}

// Apply folds opts over the defaults.
func Apply(opts []Option) Options {
	o := Options{AttemptLogin: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Response is a successful server response.
type Response struct {
	// URL is the effective URL the body was served from, after redirects.
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Resolve turns a reference found in the response into an absolute URI.
func (r *Response) Resolve(ref string) (string, error) {
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse response url: %w", err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

// Decode unmarshals the response body.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", r.URL, err)
	}
	return nil
}
