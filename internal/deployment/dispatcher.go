package deployment

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of inbound-event processing.
type Task func(ctx context.Context)

// Dispatcher runs inbound-event tasks on a bounded worker pool. Webhook
// handlers submit and return immediately so the HTTP response is never held
// behind AI generation latency; the platform's own webhook redelivery is the
// retry mechanism for anything dropped here.
type Dispatcher struct {
	logger  *slog.Logger
	queue   chan Task
	workers int

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given worker count and queue
// depth.
func NewDispatcher(log *slog.Logger, workers, depth int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 256
	}
	return &Dispatcher{
		logger:  log.With(slog.String("component", "dispatcher")),
		queue:   make(chan Task, depth),
		workers: workers,
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case task := <-d.queue:
						d.run(ctx, task)
					}
				}
			}()
		}
	})
}

// Submit enqueues a task without blocking. It returns false when the queue
// is full; the caller has already acknowledged the webhook, so the event is
// dropped and logged.
func (d *Dispatcher) Submit(task Task) bool {
	if task == nil {
		return false
	}
	select {
	case d.queue <- task:
		return true
	default:
		d.logger.Warn("inbound queue full, dropping event")
		return false
	}
}

// Shutdown stops the workers and waits for in-flight tasks to finish or the
// context to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("inbound task panicked", slog.Any("panic", r))
		}
	}()
	task(ctx)
}
