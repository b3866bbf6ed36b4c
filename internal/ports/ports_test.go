package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name  string
	err   error
	panic bool
}

func (s *stubChecker) Name() string { return s.name }

func (s *stubChecker) Check(ctx context.Context) error {
	if s.panic {
		panic("boom")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.err
}

func TestRegister(t *testing.T) {
	registry := NewHealthRegistry()

	require.NoError(t, registry.Register(&stubChecker{name: "app"}))
	require.NoError(t, registry.Register(&stubChecker{name: "telemetry"}))

	err := registry.Register(&stubChecker{name: "app"})
	require.ErrorIs(t, err, ErrDuplicateChecker)
	assert.Contains(t, err.Error(), "app")

	assert.Equal(t, []string{"app", "telemetry"}, registry.Names())
}

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name     string
		checkers []HealthChecker
		want     HealthStatus
		failing  map[string]string
	}{
		{
			name: "no checkers",
			want: HealthStatusHealthy,
		},
		{
			name:     "all healthy",
			checkers: []HealthChecker{&stubChecker{name: "a"}, &stubChecker{name: "b"}},
			want:     HealthStatusHealthy,
		},
		{
			name: "one unhealthy",
			checkers: []HealthChecker{
				&stubChecker{name: "a"},
				&stubChecker{name: "app", err: errors.New(`invalid host "bad host"`)},
			},
			want:    HealthStatusUnhealthy,
			failing: map[string]string{"app": `invalid host "bad host"`},
		},
		{
			name:     "panicking check",
			checkers: []HealthChecker{&stubChecker{name: "p", panic: true}},
			want:     HealthStatusUnhealthy,
			failing:  map[string]string{"p": "check panicked: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewHealthRegistry()
			for _, c := range tt.checkers {
				require.NoError(t, registry.Register(c))
			}

			result := registry.CheckAll(context.Background())

			assert.Equal(t, tt.want, result.Status)
			assert.Len(t, result.Checks, len(tt.checkers))
			assert.False(t, result.Timestamp.IsZero())

			for name, msg := range tt.failing {
				require.Contains(t, result.Checks, name)
				assert.Equal(t, HealthStatusUnhealthy, result.Checks[name].Status)
				assert.Equal(t, msg, result.Checks[name].Message)
			}
		})
	}
}

func TestCheckAll_CanceledContext(t *testing.T) {
	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(&stubChecker{name: "app"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := registry.CheckAll(ctx)

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Equal(t, context.Canceled.Error(), result.Checks["app"].Message)
}
