// Package worker runs detached side-effect tasks outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Moadams/ProjectTracker/internal/obs"
)

const defaultTimeout = 30 * time.Second

// Outcomes recorded per task.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
	OutcomeDropped = "dropped"
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("worker: pool closed")

// Task is a unit of fire-and-forget work. Run receives a context detached from
// the submitting request and bounded by Timeout.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
	// Fields are attached to the operator log line when the task fails.
	Fields []zap.Field
}

// Submitter accepts detached tasks. *Pool and Detached satisfy it.
type Submitter interface {
	Submit(t Task) bool
}

// Detached runs every task on its own goroutine with the default timeout
// semantics. It backs callers that have no pool configured.
type Detached struct{}

func (Detached) Submit(t Task) bool {
	if t.Run == nil {
		return false
	}
	go func() {
		outcome, d, err := execute(t, defaultTimeout)
		report(t, outcome, d, err)
	}()
	return true
}

// Pool executes tasks on a fixed set of goroutines fed by a bounded queue.
type Pool struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan Task
	wg      sync.WaitGroup
	timeout time.Duration
	onDone  func(name, outcome string)
}

// Option configures Pool behavior.
type Option func(*Pool)

// WithDefaultTimeout bounds tasks that do not set their own Timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithOutcomeHook observes every finished or dropped task. Intended for tests.
func WithOutcomeHook(fn func(name, outcome string)) Option {
	return func(p *Pool) {
		p.onDone = fn
	}
}

// NewPool starts workers goroutines draining a queue of queueSize.
func NewPool(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		queue:   make(chan Task, queueSize),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

// Submit enqueues t without blocking. It reports false when the pool is closed
// or the queue is full; the task is then dropped and logged.
func (p *Pool) Submit(t Task) bool {
	if t.Run == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.finish(t, OutcomeDropped, 0, ErrClosed)
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		p.finish(t, OutcomeDropped, 0, errors.New("queue full"))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	outcome, d, err := execute(t, p.timeout)
	p.finish(t, outcome, d, err)
}

func (p *Pool) finish(t Task, outcome string, d time.Duration, err error) {
	report(t, outcome, d, err)
	if p.onDone != nil {
		p.onDone(t.Name, outcome)
	}
}

// execute runs t under a context detached from any request and classifies the result.
func execute(t Task, fallback time.Duration) (string, time.Duration, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- panicError{value: r}
			}
		}()
		result <- t.Run(ctx)
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}

	var pe panicError
	switch {
	case err == nil:
		return OutcomeOK, time.Since(start), nil
	case errors.As(err, &pe):
		return OutcomePanic, time.Since(start), err
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout, time.Since(start), err
	default:
		return OutcomeError, time.Since(start), err
	}
}

func report(t Task, outcome string, d time.Duration, err error) {
	obs.ObserveSideEffect(t.Name, outcome, d)
	if err == nil {
		return
	}
	fields := append([]zap.Field{
		zap.String("task", t.Name),
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
		zap.Error(err),
	}, t.Fields...)
	obs.Logger().Warn("side effect failed", fields...)
}

type panicError struct{ value any }

func (e panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }
