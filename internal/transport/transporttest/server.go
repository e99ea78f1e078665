// Package transporttest provides an in-memory transport.Client that serves
// JSON documents and scripted handlers, for tests of code that talks to the
// server.
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/transport"
)

// Request records one call made through the fake.
type Request struct {
	Method string
	URI    string
	Body   []byte
}

// Handler answers a request. Returning a nil response with a nil error
// yields an empty 204 response.
type Handler func(req Request) (*transport.Response, error)

// Server is an in-memory transport.Client.
type Server struct {
	mu        sync.Mutex
	resources map[string][]byte
	handlers  map[string]Handler
	failures  map[string][]error
	requests  []Request
}

var _ transport.Client = (*Server)(nil)

// New creates an empty fake server.
func New() *Server {
	return &Server{
		resources: make(map[string][]byte),
		handlers:  make(map[string]Handler),
		failures:  make(map[string][]error),
	}
}

func key(method, uri string) string {
	return method + " " + uri
}

// Put serves v as JSON for GET requests on uri.
func (s *Server) Put(uri string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("transporttest: marshal %s: %v", uri, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[uri] = data
}

// Remove stops serving uri; subsequent GETs return 404.
func (s *Server) Remove(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, uri)
}

// Handle installs a handler for method and uri. Handlers take precedence
// over documents registered with Put.
func (s *Server) Handle(method, uri string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key(method, uri)] = h
}

// Fail queues errors returned by the next calls to method and uri, one per
// call, before normal handling resumes.
func (s *Server) Fail(method, uri string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(method, uri)
	s.failures[k] = append(s.failures[k], errs...)
}

// Requests returns the calls made so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls counts the calls made to method and uri.
func (s *Server) Calls(method, uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.URI == uri {
			n++
		}
	}
	return n
}

// Get implements transport.Client.
func (s *Server) Get(ctx context.Context, uri string, opts ...transport.Option) (*transport.Response, error) {
	return s.do(ctx, http.MethodGet, uri, nil)
}

// Post implements transport.Client.
func (s *Server) Post(ctx context.Context, uri string, body any, opts ...transport.Option) (*transport.Response, error) {
	return s.do(ctx, http.MethodPost, uri, body)
}

// Patch implements transport.Client.
func (s *Server) Patch(ctx context.Context, uri string, body any, opts ...transport.Option) (*transport.Response, error) {
	return s.do(ctx, http.MethodPatch, uri, body)
}

// Delete implements transport.Client.
func (s *Server) Delete(ctx context.Context, uri string, opts ...transport.Option) (*transport.Response, error) {
	return s.do(ctx, http.MethodDelete, uri, nil)
}

func (s *Server) do(ctx context.Context, method, uri string, body any) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.KindServerSession, method+" "+uri, err)
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}
	req := Request{Method: method, URI: uri, Body: payload}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	k := key(method, uri)
	if errs := s.failures[k]; len(errs) > 0 {
		s.failures[k] = errs[1:]
		s.mu.Unlock()
		return nil, errs[0]
	}
	h, hasHandler := s.handlers[k]
	doc, hasDoc := s.resources[uri]
	s.mu.Unlock()

	switch {
	case hasHandler:
		resp, err := h(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &transport.Response{URL: uri, Status: http.StatusNoContent}
		}
		return resp, nil
	case method == http.MethodGet && hasDoc:
		return &transport.Response{URL: uri, Status: http.StatusOK, Body: doc}, nil
	case method == http.MethodDelete && hasDoc:
		s.Remove(uri)
		return &transport.Response{URL: uri, Status: http.StatusNoContent}, nil
	case method == http.MethodGet || method == http.MethodDelete:
		return nil, NotFound(method, uri)
	default:
		return nil, fault.HTTPStatus(method+" "+uri, http.StatusMethodNotAllowed, "")
	}
}

// JSON builds a 200 response carrying v, served from uri.
func JSON(uri string, v any) *transport.Response {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("transporttest: marshal %s: %v", uri, err))
	}
	return &transport.Response{URL: uri, Status: http.StatusOK, Body: data}
}

// Status builds the error the HTTP client returns for an unexpected status.
func Status(method, uri string, status int) error {
	return fault.HTTPStatus(method+" "+uri, status, "")
}

// NotFound builds a 404 error.
func NotFound(method, uri string) error {
	return Status(method, uri, http.StatusNotFound)
}

// Offline builds the error returned when the server cannot be reached.
func Offline(method, uri string) error {
	return fault.New(fault.KindServerSession, method+" "+uri, "network unreachable")
}
