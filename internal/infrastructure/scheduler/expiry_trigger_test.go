package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls.Add(1)
	return 2, s.err
}

func TestExpiryTrigger_CheckAndTrigger(t *testing.T) {
	sweeper := &countingSweeper{}
	trigger := NewExpiryTrigger(ExpiryTriggerConfig{Hour: 3, Minute: 0}, sweeper, zap.NewNop())

	tests := []struct {
		name string
		now  time.Time
		ran  bool
	}{
		{"before the run time", time.Date(2025, 3, 3, 2, 59, 0, 0, time.UTC), false},
		{"at the run time", time.Date(2025, 3, 3, 3, 0, 0, 0, time.UTC), true},
		{"same minute again", time.Date(2025, 3, 3, 3, 0, 30, 0, time.UTC), false},
		{"next day", time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		trigger.now = func() time.Time { return tt.now }
		assert.Equal(t, tt.ran, trigger.checkAndTrigger(context.Background()), tt.name)
	}
	assert.Equal(t, int32(2), sweeper.calls.Load())
}

func TestExpiryTrigger_RunNowError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database down")}
	trigger := NewExpiryTrigger(DefaultExpiryTriggerConfig(), sweeper, nil)

	trigger.RunNow(context.Background())
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestExpiryTrigger_StartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	now := time.Date(2025, 3, 3, 3, 0, 0, 0, time.UTC)
	trigger := NewExpiryTrigger(ExpiryTriggerConfig{Hour: 3, CheckInterval: 10 * time.Millisecond}, sweeper, zap.NewNop())
	trigger.now = func() time.Time { return now }

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))

	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
