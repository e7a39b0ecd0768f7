package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

func TestNewPolicy_ClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial)
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, config.RetryBackoffFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)
}

func TestNewPolicy_Defaults(t *testing.T) {
	assert.Equal(t, DefaultPolicy(), NewPolicy("", 0, 0, DefaultPolicy().MaxRetries))
}

func TestPolicy_Delay(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"zero attempt", NewPolicy(config.RetryBackoffLinear, 100*ms, time.Second, 3), 0, 0},
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*ms, time.Second, 3), 3, 100 * ms},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 3), 2, 200 * ms},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 3), 3, 250 * ms},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 100*ms, time.Second, 5), 3, 400 * ms},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 100*ms, time.Second, 5), 5, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestPolicy_DoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_DoGivesUp(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
}

func TestPolicy_DoStopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return ferrors.ValidationError("bad payload").Build()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DoHonoursContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(context.Background())
	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return ferrors.FeedError("publish failed").Build()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	p := FromConfig(cfg.Feed.Retry)
	assert.Equal(t, config.RetryBackoffExponential, p.Mode)
	assert.Equal(t, 200*time.Millisecond, p.Initial)
	assert.Equal(t, 5*time.Second, p.Max)
	assert.Equal(t, config.DefaultMaxRetries, p.MaxRetries)
}
