package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	jwtPattern       = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	bearerPattern    = regexp.MustCompile(`(?i)^bearer\s+.+$`)
	basicAuthPattern = regexp.MustCompile(`(?i)^basic\s+.+$`)
)

// DefaultRedactOptions returns the masq options applied to every handler.
// Request headers are logged by the dispatch layer, so header-shaped names
// are covered alongside the usual secret fields.
func DefaultRedactOptions() []masq.Option {
	return []masq.Option{
		masq.WithFieldName("password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("token"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("apiKey"),
		masq.WithFieldName("access_token"),
		masq.WithFieldName("refresh_token"),
		masq.WithFieldName("authorization"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("cookie"),
		masq.WithFieldName("Cookie"),
		masq.WithFieldName("Set-Cookie"),
		masq.WithFieldName("X-Api-Key"),
		masq.WithFieldName("session"),

		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),

		masq.WithRegex(jwtPattern),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(basicAuthPattern),
	}
}

// NewReplaceAttr creates a ReplaceAttr function for slog.HandlerOptions
// that redacts sensitive data. Extra options extend the defaults.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	allOpts := append(DefaultRedactOptions(), opts...)
	return masq.New(allOpts...)
}
