package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const taskQueueSize = 64

var (
	ErrNotStarted = errors.New("worker not started")
	ErrStopped    = errors.New("worker stopped")
	ErrQueueFull  = errors.New("task queue full")
)

// Handler executes one task kind and returns the result payload.
type Handler func(ctx context.Context) (any, error)

// Worker is the single execution context that serializes all
// fingerprint-affecting operations. Tasks are dequeued FIFO and handled one
// at a time; each submission gets a dedicated single-assignment result slot,
// so delivery is O(1) per task and waiters can never steal each other's
// results.
type Worker struct {
	mu       sync.Mutex
	handlers map[Kind]Handler
	tasks    chan Task
	slots    map[string]chan Result
	log      zerolog.Logger
	wg       sync.WaitGroup
	started  bool
	stopped  bool
}

// New creates a Worker with the given task handlers.
func New(handlers map[Kind]Handler, log zerolog.Logger) *Worker {
	return &Worker{
		handlers: handlers,
		tasks:    make(chan Task, taskQueueSize),
		slots:    make(map[string]chan Result),
		log:      log.With().Str("component", "task_worker").Logger(),
	}
}

// Start launches the dispatch loop. It runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop waits for the dispatch loop to drain its in-flight task, honoring the
// context deadline. A task mid-handler at shutdown may complete its side
// effects but never deliver a result to a waiter that already gave up.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues a task of the given kind and returns its id immediately.
// Submission never blocks: a full queue is reported as an error.
func (w *Worker) Submit(kind Kind) (string, error) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return "", ErrNotStarted
	}
	if w.stopped {
		w.mu.Unlock()
		return "", ErrStopped
	}

	id := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
	slot := make(chan Result, 1)
	w.slots[id] = slot
	w.mu.Unlock()

	task := Task{ID: id, Kind: kind, SubmittedAt: time.Now()}
	select {
	case w.tasks <- task:
		w.log.Debug().Str("task_id", id).Str("kind", string(kind)).Msg("Task submitted")
		return id, nil
	default:
		w.mu.Lock()
		delete(w.slots, id)
		w.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Poll waits up to timeout for the result of task id. The second return is
// false when the result is not yet available or the id is unknown; the slot
// stays claimable, so a later Poll can still retrieve it.
func (w *Worker) Poll(ctx context.Context, id string, timeout time.Duration) (Result, bool) {
	w.mu.Lock()
	slot, ok := w.slots[id]
	w.mu.Unlock()
	if !ok {
		return Result{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-slot:
		w.mu.Lock()
		delete(w.slots, id)
		w.mu.Unlock()
		return res, true
	case <-timer.C:
		return Result{}, false
	case <-ctx.Done():
		return Result{}, false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.log.Info().Msg("Task worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Task worker received cancellation signal. Exiting...")
			return
		case task := <-w.tasks:
			w.deliver(task.ID, w.dispatch(ctx, task))
		}
	}
}

// dispatch runs one task's handler, converting every failure mode into an
// error Result. A handler fault must never terminate the loop.
func (w *Worker) dispatch(ctx context.Context, task Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("task_id", task.ID).Interface("panic", r).Msg("Handler panicked")
			res = Result{TaskID: task.ID, Status: StatusError, Err: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	handler, ok := w.handlers[task.Kind]
	if !ok {
		return Result{
			TaskID: task.ID,
			Status: StatusError,
			Err:    fmt.Sprintf("unknown task kind: %s", task.Kind),
		}
	}

	w.log.Debug().Str("task_id", task.ID).Str("kind", string(task.Kind)).Msg("Executing task")
	payload, err := handler(ctx)
	if err != nil {
		return Result{TaskID: task.ID, Status: StatusError, Err: err.Error()}
	}
	return Result{TaskID: task.ID, Status: StatusSuccess, Payload: payload}
}

func (w *Worker) deliver(id string, res Result) {
	w.mu.Lock()
	slot, ok := w.slots[id]
	w.mu.Unlock()
	if !ok {
		// Waiter already gave up and the slot was reclaimed.
		w.log.Debug().Str("task_id", id).Msg("No waiter for task result")
		return
	}
	// The slot is buffered and single-assignment; this never blocks.
	slot <- res
}
