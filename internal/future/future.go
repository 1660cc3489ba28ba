// Package future provides the one-shot result cell backing pending
// request/response slots. A cell resolves at most once: the first
// Complete or Fail wins and every later attempt is a no-op, which is
// what makes a late responder harmless after a timeout already fired.
package future

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/casualjim/waggle/pkg/stdx"
)

type outcome[T any] struct {
	value T
	err   error
}

// Cell is a single-resolution value holder. The zero value is not
// usable; create cells with New.
//
// A cell is written from any goroutine but is designed for a single
// awaiter: the caller that created it. Additional awaiters observe the
// cached outcome once it exists but may miss their own context
// cancellation while the first awaiter holds the receive lock.
type Cell[T any] struct {
	ch   chan outcome[T]
	done atomic.Value // holds *outcome[T] once settled
	once sync.Once
	mu   sync.Mutex
}

// New returns an unresolved cell.
func New[T any]() *Cell[T] {
	return &Cell[T]{
		ch: make(chan outcome[T], 1),
	}
}

// Complete resolves the cell with v. It reports whether this call took
// effect; false means the cell was already resolved or failed.
func (c *Cell[T]) Complete(v T) bool {
	won := false
	c.once.Do(func() {
		c.ch <- outcome[T]{value: v}
		won = true
	})
	return won
}

// Fail resolves the cell with an error. First resolution wins, same as
// Complete.
func (c *Cell[T]) Fail(err error) bool {
	won := false
	c.once.Do(func() {
		c.ch <- outcome[T]{err: err}
		won = true
	})
	return won
}

// Await blocks until the cell resolves or ctx is done. When ctx expires
// first, Await returns ctx.Err(); the cell itself stays resolvable so a
// late Complete is still absorbed (and ignored) rather than blocking
// the responder.
func (c *Cell[T]) Await(ctx context.Context) (T, error) {
	if out, ok := c.done.Load().(*outcome[T]); ok {
		return out.value, out.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the lock: another awaiter may have
	// drained the channel while this one was queued.
	if out, ok := c.done.Load().(*outcome[T]); ok {
		return out.value, out.err
	}

	select {
	case out := <-c.ch:
		c.done.Store(&out)
		return out.value, out.err
	case <-ctx.Done():
		return stdx.Zero[T](), ctx.Err()
	}
}

// Resolved reports whether a resolution has been observed by an awaiter.
// It is a diagnostic aid for tests; synchronization still comes from
// Await.
func (c *Cell[T]) Resolved() bool {
	_, ok := c.done.Load().(*outcome[T])
	return ok
}
