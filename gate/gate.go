// Package gate provides one-shot settable values.
//
// A Gate settles exactly once, either resolved with a value or rejected with
// an error. Observers registered with OnSettle run synchronously on the
// goroutine that settles the gate, in registration order. Observers added
// after settlement run immediately on the caller's goroutine.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrRejected = errors.New("gate rejected")

type Gate[T any] struct {
	ctx    context.Context
	settle context.CancelCauseFunc

	mu        sync.Mutex
	value     T
	observers []func(T, error)
}

func New[T any]() *Gate[T] {
	ctx, settle := context.WithCancelCause(context.Background())
	return &Gate[T]{ctx: ctx, settle: settle}
}

// Resolve settles g with v. It reports whether this call settled the gate.
func (g *Gate[T]) Resolve(v T) bool {
	return g.finish(v, nil)
}

// Reject settles g with err. It reports whether this call settled the gate.
func (g *Gate[T]) Reject(err error) bool {
	var zero T
	switch err {
	case nil:
		err = ErrRejected
	case context.Canceled:
		// a bare Canceled cause marks success below
		err = fmt.Errorf("gate: %w", err)
	}
	return g.finish(zero, err)
}

func (g *Gate[T]) finish(v T, err error) bool {
	g.mu.Lock()
	if g.ctx.Err() != nil {
		g.mu.Unlock()
		return false
	}
	g.value = v
	g.settle(err)
	observers := g.observers
	g.observers = nil
	g.mu.Unlock()

	for _, fn := range observers {
		fn(v, err)
	}
	return true
}

func (g *Gate[T]) cause() error {
	if err := context.Cause(g.ctx); err != context.Canceled {
		return err
	}
	return nil
}

func (g *Gate[T]) Pending() bool { return g.ctx.Err() == nil }

// Resolved reports whether g settled successfully.
func (g *Gate[T]) Resolved() bool { return !g.Pending() && g.cause() == nil }

// Result returns the settled value and error. Before settlement it returns
// the zero value and nil.
func (g *Gate[T]) Result() (v T, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Pending() {
		return v, nil
	}
	return g.value, g.cause()
}

func (g *Gate[T]) Done() <-chan struct{} { return g.ctx.Done() }

func (g *Gate[T]) OnSettle(fn func(v T, err error)) {
	g.mu.Lock()
	if g.Pending() {
		g.observers = append(g.observers, fn)
		g.mu.Unlock()
		return
	}
	v, err := g.value, g.cause()
	g.mu.Unlock()
	fn(v, err)
}

// Notify is OnSettle without the value, so gates of any type can be joined.
func (g *Gate[T]) Notify(fn func(err error)) {
	g.OnSettle(func(_ T, err error) { fn(err) })
}

func (g *Gate[T]) Wait(ctx context.Context) (v T, err error) {
	select {
	case <-g.Done():
		return g.Result()
	case <-ctx.Done():
		return v, ctx.Err()
	}
}

type Settler interface {
	Notify(fn func(err error))
}

var _ Settler = (*Gate[struct{}])(nil)

// Join resolves once every input resolved, or rejects with the first
// rejection seen. The input order does not matter.
func Join(inputs ...Settler) *Gate[struct{}] {
	out := New[struct{}]()
	if len(inputs) == 0 {
		out.Resolve(struct{}{})
		return out
	}
	var mu sync.Mutex
	remaining := len(inputs)
	for _, in := range inputs {
		in.Notify(func(err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Resolve(struct{}{})
			}
		})
	}
	return out
}
