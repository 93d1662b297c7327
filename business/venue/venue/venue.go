// Package venue defines the common interface every exchange client
// implements, letting the Aggregator treat Delta and Deribit uniformly
// (spec.md §4.3, §4.5).
package venue

import (
	"context"

	"github.com/mdagg/mdagg/internal/model"
)

// Client is one venue's discovery + streaming surface.
type Client interface {
	// Discover fetches and normalizes the full instrument catalog.
	Discover(ctx context.Context) ([]model.Instrument, error)
	// Consume starts streaming the given instrument subset, publishing
	// canonical events to sink. Returns once the background stream tasks
	// have been spawned.
	Consume(ctx context.Context, sink func(model.Event), instruments []model.Instrument) error
}
