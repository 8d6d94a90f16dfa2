// Package lazy memoises expensive client handles on first use.
package lazy

import (
	"context"
	"sync"
)

// Handle constructs a value on the first successful Get and returns the same
// value afterwards. A failed construction is retried on the next Get.
type Handle[T any] struct {
	mu      sync.Mutex
	create  func(ctx context.Context) (T, error)
	value   T
	created bool
}

// New returns a handle backed by create.
func New[T any](create func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{create: create}
}

// Of returns a handle that already holds v.
func Of[T any](v T) *Handle[T] {
	return &Handle[T]{value: v, created: true}
}

// Get returns the memoised value, creating it if necessary.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.created {
		return h.value, nil
	}
	var zero T
	if h.create == nil {
		return zero, errNoConstructor
	}
	v, err := h.create(ctx)
	if err != nil {
		return zero, err
	}
	h.value = v
	h.created = true
	return v, nil
}

// Created reports whether the value has been constructed.
func (h *Handle[T]) Created() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

type constError string

func (e constError) Error() string { return string(e) }

const errNoConstructor = constError("lazy: handle has no constructor")
