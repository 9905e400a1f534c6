package panel

import (
	"sync"
	"time"
)

type record struct {
	value     string
	updatedAt time.Time
}

// Store holds the latest value of every Reading together with the time it
// was received. It is the only state shared between the subscriber goroutine
// and the request handlers; a single lock over the whole map is enough at
// four entries.
//
// Freshness is evaluated lazily by Snapshot. The store never clears a record
// on a timer, so the last real value stays retrievable through Last even
// after Snapshot starts reporting it as awaiting data.
type Store struct {
	mu      sync.RWMutex
	records map[Reading]record
}

// NewStore builds a Store with one record per Reading, all initialized to
// the awaiting-data placeholder and a zero timestamp. The key set never
// changes afterwards.
func NewStore() *Store {
	records := make(map[Reading]record, len(Readings()))
	for _, reading := range Readings() {
		records[reading] = record{value: AwaitingData}
	}
	return &Store{records: records}
}

// Update overwrites the record for the given reading. Value and timestamp
// change together under the lock, so readers never observe a torn record.
// Updates for a reading outside the fixed set are ignored.
func (s *Store) Update(reading Reading, value string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[reading]
	if !ok {
		return
	}

	// Ordering is by arrival; keep the timestamp non-decreasing even if a
	// concurrent writer supplied an earlier one.
	if at.Before(rec.updatedAt) {
		at = rec.updatedAt
	}
	s.records[reading] = record{value: value, updatedAt: at}
}

// Snapshot returns the current value of every Reading as of now. A reading
// older than staleAfter, or never received at all, degrades to AwaitingData.
// A value received exactly staleAfter ago is still fresh.
func (s *Store) Snapshot(
	now time.Time,
	staleAfter time.Duration,
) map[Reading]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := make(map[Reading]string, len(s.records))
	for reading, rec := range s.records {
		if rec.updatedAt.IsZero() || now.Sub(rec.updatedAt) > staleAfter {
			view[reading] = AwaitingData
		} else {
			view[reading] = rec.value
		}
	}
	return view
}

// Last returns the stored value and receive time for a reading, bypassing
// the freshness policy. ok is false if the reading was never received, which
// distinguishes "never received" from "received long ago".
func (s *Store) Last(reading Reading) (value string, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, found := s.records[reading]
	if !found || rec.updatedAt.IsZero() {
		return rec.value, time.Time{}, false
	}
	return rec.value, rec.updatedAt, true
}
