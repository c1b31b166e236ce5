package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/sms-ledger/pkg/logger"
)

var ErrStopped = errors.New("workers terminated")

type WorkerHandler[T any] func(workerIndex int, job T)

// WorkerManager distributes jobs from a bounded channel over a fixed set of
// goroutines. With a single worker, jobs run strictly in enqueue order.
type WorkerManager[T any] struct {
	jobs           chan T
	numberOfWorker int
	do             WorkerHandler[T]
	done           chan struct{}
	exitOnce       sync.Once
	waiter         sync.WaitGroup
}

func NewWorkerManager[T any](bufferSize, numberOfWorkers int) *WorkerManager[T] {
	return &WorkerManager[T]{
		jobs:           make(chan T, max(bufferSize, 0)),
		numberOfWorker: max(numberOfWorkers, 1),
		done:           make(chan struct{}),
	}
}

// Pending is the number of buffered jobs not yet picked up.
func (w *WorkerManager[T]) Pending() int {
	return len(w.jobs)
}

func (w *WorkerManager[T]) SetWorker(worker WorkerHandler[T]) {
	w.do = worker
}

// Enqueue blocks until the job is accepted, ctx is done or the manager exits.
func (w *WorkerManager[T]) Enqueue(ctx context.Context, job T) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	select {
	case w.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrStopped
	}
}

// Start runs the workers and blocks until Exit is called. A job being
// handled when Exit is called runs to completion.
func (w *WorkerManager[T]) Start() error {
	if w.do == nil {
		return errors.New("no worker handler set")
	}

	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobs:
					w.do(index, job)
				case <-w.done:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrStopped
}

// Exit stops every worker. Safe to call more than once.
func (w *WorkerManager[T]) Exit() {
	w.exitOnce.Do(func() {
		logger.Info("worker manager is shutting down", "workers", w.numberOfWorker, "pending", len(w.jobs))
		close(w.done)
	})
}
