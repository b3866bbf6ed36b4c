package app

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
)

const defaultTestHost = "localhost"

// RequestOption adjusts a synthetic request built by TestRequestContext or
// TestClient.
type RequestOption func(*http.Request)

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(r *http.Request) { r.Method = method }
}

// WithHost overrides the host the request addresses.
func WithHost(host string) RequestOption {
	return func(r *http.Request) { r.Host = host }
}

// WithHeader sets a request header.
func WithHeader(name, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

// WithScheme marks the request as http or https.
func WithScheme(scheme string) RequestOption {
	return func(r *http.Request) {
		r.URL.Scheme = strings.ToLower(scheme)
		if r.URL.Scheme == "https" {
			r.TLS = &tls.ConnectionState{}
		} else {
			r.TLS = nil
		}
	}
}

// TestRequestContext builds an unpushed request context for target, as if
// the request had arrived at the canonical server name ("localhost" when
// none is configured). WithHost overrides that host, which is how a server
// name mismatch is provoked.
func (a *App) TestRequestContext(target string, opts ...RequestOption) *reqctx.RequestContext {
	return a.RequestContext(a.newTestRequest(target, nil, opts))
}

func (a *App) newTestRequest(target string, body io.Reader, opts []RequestOption) *http.Request {
	if target == "" {
		target = "/"
	}

	r := httptest.NewRequest(http.MethodGet, target, body)
	r.Host = a.defaultHost()
	r.URL.Scheme = ""
	r.URL.Host = ""
	r.TLS = nil

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (a *App) defaultHost() string {
	if host := a.ServerName(); host != "" {
		return host
	}

	return defaultTestHost
}

// TestClient drives requests through the full middleware chain in process.
type TestClient struct {
	app *App
}

// TestClient returns a client for a.
func (a *App) TestClient() *TestClient {
	return &TestClient{app: a}
}

// Get performs a GET of target.
func (tc *TestClient) Get(target string, opts ...RequestOption) *httptest.ResponseRecorder {
	return tc.Do(tc.app.newTestRequest(target, nil, opts))
}

// Post performs a POST of target with body.
func (tc *TestClient) Post(target string, body io.Reader, opts ...RequestOption) *httptest.ResponseRecorder {
	opts = append([]RequestOption{WithMethod(http.MethodPost)}, opts...)
	return tc.Do(tc.app.newTestRequest(target, body, opts))
}

// Do serves r and returns the recorded response.
func (tc *TestClient) Do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tc.app.ServeHTTP(w, r)

	return w
}
