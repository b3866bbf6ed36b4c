package reqctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testApp struct {
	mu         sync.Mutex
	name       string
	serverName string
	teardowns  *TeardownRegistry
}

func newTestApp(serverName string) *testApp {
	return &testApp{
		name:       "test-app",
		serverName: serverName,
		teardowns:  NewTeardownRegistry(),
	}
}

func (a *testApp) Name() string { return a.name }

func (a *testApp) ServerName() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.serverName
}

func (a *testApp) setServerName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.serverName = name
}

func (a *testApp) Teardowns() *TeardownRegistry { return a.teardowns }

// recorder collects the causes teardown was called with.
type recorder struct {
	mu     sync.Mutex
	causes []error
}

func (r *recorder) teardown(_ context.Context, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.causes = append(r.causes, cause)

	return nil
}

func (r *recorder) calls() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]error(nil), r.causes...)
}

func newRequest(target string, opts ...func(*http.Request)) *Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Host = "localhost"

	for _, opt := range opts {
		opt(r)
	}

	return NewRequest(r)
}

func withHost(host string) func(*http.Request) {
	return func(r *http.Request) { r.Host = host }
}

func mustPush(t *testing.T, ctx context.Context, rc *RequestContext) {
	t.Helper()
	require.NoError(t, rc.Push(ctx))
}
