package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaders/hwid-sentinel/pkg/config"
)

type fakeProcess struct {
	mu        sync.Mutex
	execCount int
	running   bool
}

func (p *fakeProcess) Name() string { return "fake" }

func (p *fakeProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) Execute(context.Context) error {
	p.mu.Lock()
	p.execCount++
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) executions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execCount
}

func TestIntervalFloorEnforced(t *testing.T) {
	s := NewScheduler(time.Second, &fakeProcess{}, zerolog.Nop())
	assert.Equal(t, config.MinMonitoringInterval, s.Interval())

	s.ResetInterval(5 * time.Second)
	assert.Equal(t, config.MinMonitoringInterval, s.Interval())

	s.ResetInterval(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, s.Interval())
}

func TestStartStopLifecycle(t *testing.T) {
	proc := &fakeProcess{}
	s := NewScheduler(time.Minute, proc, zerolog.Nop())
	assert.False(t, s.Active())

	ctx := context.Background()
	s.Start(ctx)
	assert.True(t, s.Active())

	// Starting again is a no-op.
	s.Start(ctx)
	assert.True(t, s.Active())

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.Active())

	// Stopping again is a no-op.
	assert.NoError(t, s.Stop(stopCtx))
}

func TestStopIsPrompt(t *testing.T) {
	// The interval is long but the loop ticks every second, so cancellation
	// must be observed well before the next check would fire.
	s := NewScheduler(time.Hour, &fakeProcess{}, zerolog.Nop())
	s.Start(context.Background())

	start := time.Now()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNoExecutionBeforeIntervalElapses(t *testing.T) {
	proc := &fakeProcess{}
	s := NewScheduler(time.Minute, proc, zerolog.Nop())
	s.Start(context.Background())

	time.Sleep(1500 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	assert.Zero(t, proc.executions())
	_, ran := s.LastCheck()
	assert.False(t, ran)
}

func TestParentContextCancelStopsLoop(t *testing.T) {
	s := NewScheduler(time.Minute, &fakeProcess{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
}
