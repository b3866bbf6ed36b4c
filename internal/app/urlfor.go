package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
	"github.com/jsamuelsen/go-request-context/internal/domain"
)

type urlOptions struct {
	external bool
	scheme   string
	params   map[string]string
	query    url.Values
}

// URLOption configures URLFor.
type URLOption func(*urlOptions)

// External builds an absolute URL.
func External() URLOption {
	return func(o *urlOptions) { o.external = true }
}

// WithURLScheme forces the scheme of an absolute URL and implies External.
func WithURLScheme(scheme string) URLOption {
	return func(o *urlOptions) {
		o.external = true
		o.scheme = scheme
	}
}

// WithParam fills the ":name" path segment. Parameters the route does not
// declare are appended to the query string.
func WithParam(name, value string) URLOption {
	return func(o *urlOptions) { o.params[name] = value }
}

// WithQuery appends a query parameter.
func WithQuery(name, value string) URLOption {
	return func(o *urlOptions) { o.query.Add(name, value) }
}

// URLFor builds the URL of a registered endpoint. Absolute URLs use the
// canonical server name when one is configured and the current request's
// host otherwise; with neither available URLFor fails with
// domain.ErrOutsideContext.
func (a *App) URLFor(ctx context.Context, endpoint string, opts ...URLOption) (string, error) {
	o := urlOptions{params: map[string]string{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&o)
	}

	r, ok := a.route(endpoint)
	if !ok {
		return "", domain.NewNotFoundError("endpoint", endpoint)
	}

	path, err := expandPath(r.Path, o.params)
	if err != nil {
		return "", fmt.Errorf("building url for %q: %w", endpoint, err)
	}

	for name, value := range o.params {
		o.query.Add(name, value)
	}

	ref := a.withRoot(path)
	if len(o.query) > 0 {
		ref += "?" + o.query.Encode()
	}

	if !o.external {
		return ref, nil
	}

	scheme, host, err := a.origin(ctx, o.scheme)
	if err != nil {
		return "", fmt.Errorf("building external url for %q: %w", endpoint, err)
	}

	return scheme + "://" + host + ref, nil
}

// origin picks scheme and host for an absolute URL.
func (a *App) origin(ctx context.Context, scheme string) (string, string, error) {
	req, reqErr := reqctx.CurrentRequest(ctx)

	if scheme == "" {
		scheme = a.scheme
		if reqErr == nil {
			scheme = req.Scheme()
		}
	}

	if host := a.ServerName(); host != "" {
		return scheme, host, nil
	}

	if reqErr != nil {
		return "", "", reqErr
	}

	return scheme, req.Host(), nil
}

func (a *App) withRoot(path string) string {
	root := strings.TrimSuffix(a.root, "/")
	return root + path
}

// expandPath substitutes ":name" and "*name" segments, consuming the params
// it uses.
func expandPath(pattern string, params map[string]string) (string, error) {
	segments := strings.Split(pattern, "/")

	for i, seg := range segments {
		if seg == "" || (seg[0] != ':' && seg[0] != '*') {
			continue
		}

		name := seg[1:]

		value, ok := params[name]
		if !ok {
			return "", domain.NewValidationError(name, "missing route parameter")
		}

		delete(params, name)

		if seg[0] == '*' {
			segments[i] = strings.TrimPrefix(value, "/")
			continue
		}

		segments[i] = url.PathEscape(value)
	}

	return strings.Join(segments, "/"), nil
}
