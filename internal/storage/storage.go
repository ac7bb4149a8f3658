// Package storage defines the persistence boundary and its implementations.
package storage

import (
	"context"
	"time"

	"feedwatch/internal/model"
	"feedwatch/internal/seen"
)

// CheckState is the persisted per-source state: the time of the last
// successful check and the seen-entry store it produced. It is read and
// replaced whole, never partially mutated.
type CheckState struct {
	LastUpdate time.Time
	Seen       seen.Store
}

// Storage is the interface for all persistence operations.
type Storage interface {
	LoadStates(ctx context.Context) (map[string]CheckState, error)
	ReplaceState(ctx context.Context, url string, st CheckState) error

	LoadUnsent(ctx context.Context) ([]model.Notification, error)
	ReplaceUnsent(ctx context.Context, notifs []model.Notification) error

	Close() error
}
