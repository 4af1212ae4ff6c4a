// Package idempotency records caller-supplied idempotency keys so a retried
// provisioning request replays its first result instead of repeating
// external side effects.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var ErrInFlight = errors.New("idempotency: request with this key is in flight")

const (
	DefaultTTL        = 24 * time.Hour
	DefaultPendingTTL = 5 * time.Minute
)

// Ledger tracks idempotency keys through reserve → complete (or release).
type Ledger interface {
	// Reserve claims key. It returns (nil, nil) when the caller now owns the
	// key, the stored result when the key already completed, or ErrInFlight
	// when another request holds it.
	Reserve(ctx context.Context, key string) ([]byte, error)

	// Complete stores the result for key; later Reserve calls replay it.
	Complete(ctx context.Context, key string, result []byte) error

	// Release drops a reservation so the key can be retried.
	Release(ctx context.Context, key string) error
}

// Pruner is implemented by ledgers that need explicit expiry sweeps.
type Pruner interface {
	Prune(now time.Time) int
}
