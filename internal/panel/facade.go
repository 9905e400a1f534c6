package panel

import (
	"time"

	"github.com/hospitech/bedwatch/internal/wallclock"
)

// Facade is the read path handed to the serving layer. It snapshots the
// store against the current wall-clock time and has no side effects; serving
// code must never reach into the store's records directly.
type Facade struct {
	store *Store
	clock wallclock.WallClock
}

// NewFacade wraps a store. A nil clock defaults to the wall clock.
func NewFacade(store *Store, clock wallclock.WallClock) *Facade {
	if clock == nil {
		clock = wallclock.Instance
	}
	return &Facade{store: store, clock: clock}
}

// Current returns the freshness-filtered view of every reading.
func (f *Facade) Current(staleAfter time.Duration) map[Reading]string {
	return f.store.Snapshot(f.clock.Now(), staleAfter)
}
