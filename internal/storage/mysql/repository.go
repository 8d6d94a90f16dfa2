package mysql

import (
	"context"

	"ActionKit-Chain/internal/action"
)

// InvocationRepository stores finished invocations.
type InvocationRepository interface {
	// Save is idempotent on the invocation ID.
	Save(ctx context.Context, inv action.Invocation) error
	// ListLatest returns the newest invocations first.
	ListLatest(ctx context.Context, limit int) ([]action.Invocation, error)
	Close() error
}

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
