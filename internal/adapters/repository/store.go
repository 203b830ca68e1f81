// Package repository stores scored states and serves ranked and per-sector
// views of them.
package repository

import (
	"context"

	"github.com/okian/ecoinvest/internal/domain/model"
)

// Store provides read/write access to the scored states.
//
// Ordering rules shared by every implementation:
//   - All and TopN order by Rank ascending, then dataset order.
//   - BySector orders by Combined ESI descending, then dataset order.
//   - Dataset order is first-insertion order; upserts keep a state's position.
//
// Rank is recomputed from PredictedESI on every write.
type Store interface {
	// Replace drops every state and loads states in the given order.
	Replace(ctx context.Context, states []model.ScoredState) error

	// Put inserts or replaces one state. A state whose UpdatedAt is older than
	// the stored one is rejected with ErrStale and nothing is written.
	Put(ctx context.Context, s model.ScoredState) error

	// Get returns a state by exact name or ErrNotFound.
	Get(ctx context.Context, name string) (model.ScoredState, error)

	// All returns every state by rank.
	All(ctx context.Context) ([]model.ScoredState, error)

	// BySector returns the states whose initiatives contain sector exactly.
	BySector(ctx context.Context, sector string) ([]model.ScoredState, error)

	// TopN returns the n best ranked states; n < 1 is ErrInvalidLimit.
	TopN(ctx context.Context, n int) ([]model.ScoredState, error)

	// Sectors returns the distinct initiatives, sorted.
	Sectors(ctx context.Context) ([]string, error)

	// Count returns the number of states.
	Count(ctx context.Context) int

	Close() error
}
