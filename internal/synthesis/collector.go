package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// ErrEmptyCollection indicates the gate triggered but the collector found
// zero events. That means a race or a bug (another run consumed the batch,
// or the scorer and collector disagree on the baseline) and is fatal for the
// run rather than silently masked.
var ErrEmptyCollection = errors.New("synthesis triggered but no events collected")

// Collector gathers the pending event batch for a triggered run.
type Collector struct {
	events storage.EventStore
}

// NewCollector creates a collector over the event store.
func NewCollector(events storage.EventStore) *Collector {
	return &Collector{events: events}
}

// Collect returns all events for the anima strictly after the baseline, in
// chronological order. Returns ErrEmptyCollection when none exist.
func (c *Collector) Collect(ctx context.Context, animaID string, baseline time.Time) ([]*types.Event, error) {
	events, err := c.events.ListEventsSince(ctx, animaID, baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to collect events: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrEmptyCollection
	}
	return events, nil
}
