package reqctx

import (
	"net/http"
	"net/url"
	"strings"
)

// Request is the immutable view of an inbound HTTP request held by a
// RequestContext. Accessors return copies where the underlying value is a map.
type Request struct {
	method     string
	scheme     string
	host       string
	path       string
	query      url.Values
	rawQuery   string
	header     http.Header
	remoteAddr string
}

// NewRequest captures the parts of r the request context exposes. r is not
// retained.
func NewRequest(r *http.Request) *Request {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	return &Request{
		method:     r.Method,
		scheme:     requestScheme(r),
		host:       host,
		path:       path,
		query:      r.URL.Query(),
		rawQuery:   r.URL.RawQuery,
		header:     r.Header.Clone(),
		remoteAddr: r.RemoteAddr,
	}
}

func requestScheme(r *http.Request) string {
	switch {
	case r.URL.Scheme != "":
		return strings.ToLower(r.URL.Scheme)
	case r.TLS != nil:
		return "https"
	default:
		return "http"
	}
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// Scheme returns "http" or "https".
func (r *Request) Scheme() string { return r.scheme }

// Host returns the host the client addressed, including any port.
func (r *Request) Host() string { return r.host }

// Path returns the URL path, never empty.
func (r *Request) Path() string { return r.path }

// RemoteAddr returns the client network address.
func (r *Request) RemoteAddr() string { return r.remoteAddr }

// Arg returns the first query value for name.
func (r *Request) Arg(name string) string { return r.query.Get(name) }

// HasArg reports whether the query string carries name.
func (r *Request) HasArg(name string) bool { return r.query.Has(name) }

// Query returns a copy of the query values.
func (r *Request) Query() url.Values {
	out := make(url.Values, len(r.query))
	for k, v := range r.query {
		out[k] = append([]string(nil), v...)
	}

	return out
}

// Header returns the first value of the named header.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// Headers returns a copy of all request headers.
func (r *Request) Headers() http.Header { return r.header.Clone() }

// URL rebuilds the absolute URL, e.g. "http://localhost/meh". The query
// string is kept as the client sent it.
func (r *Request) URL() string {
	u := url.URL{
		Scheme:   r.scheme,
		Host:     r.host,
		Path:     r.path,
		RawQuery: r.rawQuery,
	}

	return u.String()
}
