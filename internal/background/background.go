// Package background runs best-effort tasks whose failure must never reach
// the caller of the operation that started them.
package background

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultTimeout bounds a single task when the runner is created without one.
const DefaultTimeout = 30 * time.Second

// Runner starts fire-and-forget tasks. Errors and panics are logged and
// reported to the optional failure hook; they are never returned.
type Runner struct {
	ctx     context.Context
	timeout time.Duration
	wg      sync.WaitGroup

	mu        sync.Mutex
	onFailure func(name string, err error)
}

// New creates a Runner whose tasks derive their context from ctx. Cancelling
// ctx cancels in-flight tasks.
func New(ctx context.Context, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{ctx: ctx, timeout: timeout}
}

// OnFailure registers a hook called after a task fails or panics.
func (r *Runner) OnFailure(fn func(name string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = fn
}

// Go runs fn in its own goroutine.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(name, fn)
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			log.Printf("background: %s: panic: %v\n%s", name, p, debug.Stack())
			r.fail(name, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := fn(ctx); err != nil {
		log.Printf("background: %s: %v", name, err)
		r.fail(name, err)
	}
}

func (r *Runner) fail(name string, err error) {
	r.mu.Lock()
	hook := r.onFailure
	r.mu.Unlock()
	if hook != nil {
		hook(name, err)
	}
}
