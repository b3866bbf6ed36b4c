package reqctx

import (
	"strings"

	"github.com/jsamuelsen/go-request-context/internal/domain"
)

// CheckServerName compares the host a request addressed with the configured
// canonical host. An empty configured name accepts everything. Hosts compare
// case-insensitively after dropping the scheme's default port, so
// "example.com:80" matches "example.com" over http. The error reports both
// values as given.
func CheckServerName(configured, observed, scheme string) error {
	if configured == "" {
		return nil
	}

	if normalizeHost(configured, scheme) == normalizeHost(observed, scheme) {
		return nil
	}

	return domain.NewServerNameMismatchError(configured, observed)
}

func normalizeHost(host, scheme string) string {
	host = strings.ToLower(host)

	defaultPort := ":80"
	if strings.EqualFold(scheme, "https") {
		defaultPort = ":443"
	}

	return strings.TrimSuffix(host, defaultPort)
}
