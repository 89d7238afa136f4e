package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pollTimeout = 5 * time.Second

func startedWorker(t *testing.T, handlers map[Kind]Handler) *Worker {
	t.Helper()
	w := New(handlers, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = w.Stop(stopCtx)
	})
	return w
}

func TestSubmitBeforeStart(t *testing.T) {
	w := New(nil, zerolog.Nop())

	_, err := w.Submit(KindCollect)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestResultCorrelation(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{
		"echo_a": func(context.Context) (any, error) { return "a", nil },
		"echo_b": func(context.Context) (any, error) { return "b", nil },
	})

	idA, err := w.Submit("echo_a")
	require.NoError(t, err)
	idB, err := w.Submit("echo_b")
	require.NoError(t, err)

	resA, ok := w.Poll(context.Background(), idA, pollTimeout)
	require.True(t, ok)
	resB, ok := w.Poll(context.Background(), idB, pollTimeout)
	require.True(t, ok)

	assert.Equal(t, idA, resA.TaskID)
	assert.Equal(t, "a", resA.Payload)
	assert.Equal(t, idB, resB.TaskID)
	assert.Equal(t, "b", resB.Payload)
}

func TestConcurrentSubmittersNeverStealResults(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{
		"echo": func(context.Context) (any, error) { return nil, nil },
	})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := w.Submit("echo")
			if !assert.NoError(t, err) {
				return
			}
			res, ok := w.Poll(context.Background(), id, pollTimeout)
			assert.True(t, ok)
			assert.Equal(t, id, res.TaskID)
			assert.False(t, res.IsError())
		}()
	}
	wg.Wait()
}

func TestUnknownKindYieldsErrorResult(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{})

	id, err := w.Submit("no_such_kind")
	require.NoError(t, err)

	res, ok := w.Poll(context.Background(), id, pollTimeout)
	require.True(t, ok)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Err, "unknown task kind")
}

func TestHandlerErrorDoesNotKillLoop(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{
		"fail": func(context.Context) (any, error) { return nil, fmt.Errorf("boom") },
		"ok":   func(context.Context) (any, error) { return "fine", nil },
	})

	idFail, err := w.Submit("fail")
	require.NoError(t, err)
	res, ok := w.Poll(context.Background(), idFail, pollTimeout)
	require.True(t, ok)
	assert.True(t, res.IsError())
	assert.Equal(t, "boom", res.Err)

	idOK, err := w.Submit("ok")
	require.NoError(t, err)
	res, ok = w.Poll(context.Background(), idOK, pollTimeout)
	require.True(t, ok)
	assert.False(t, res.IsError())
	assert.Equal(t, "fine", res.Payload)
}

func TestHandlerPanicBecomesErrorResult(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{
		"panic": func(context.Context) (any, error) { panic("exploded") },
		"ok":    func(context.Context) (any, error) { return "alive", nil },
	})

	idPanic, err := w.Submit("panic")
	require.NoError(t, err)
	res, ok := w.Poll(context.Background(), idPanic, pollTimeout)
	require.True(t, ok)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Err, "handler panic")
	assert.Contains(t, res.Err, "exploded")

	// The loop survives the panic and keeps serving tasks.
	idOK, err := w.Submit("ok")
	require.NoError(t, err)
	res, ok = w.Poll(context.Background(), idOK, pollTimeout)
	require.True(t, ok)
	assert.Equal(t, "alive", res.Payload)
}

func TestPollTimeoutKeepsSlotClaimable(t *testing.T) {
	release := make(chan struct{})
	w := startedWorker(t, map[Kind]Handler{
		"slow": func(context.Context) (any, error) {
			<-release
			return "done", nil
		},
	})

	id, err := w.Submit("slow")
	require.NoError(t, err)

	_, ok := w.Poll(context.Background(), id, 50*time.Millisecond)
	assert.False(t, ok)

	close(release)

	res, ok := w.Poll(context.Background(), id, pollTimeout)
	require.True(t, ok)
	assert.Equal(t, "done", res.Payload)

	// The slot is consumed after a successful poll.
	_, ok = w.Poll(context.Background(), id, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestPollUnknownID(t *testing.T) {
	w := startedWorker(t, map[Kind]Handler{})

	_, ok := w.Poll(context.Background(), "nope", 50*time.Millisecond)
	assert.False(t, ok)
}

func TestSubmitAfterStop(t *testing.T) {
	w := New(map[Kind]Handler{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, w.Stop(stopCtx))

	_, err := w.Submit(KindCollect)
	assert.ErrorIs(t, err, ErrStopped)
}
