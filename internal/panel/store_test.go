package panel

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBeforeAnyUpdate(t *testing.T) {
	store := NewStore()
	now := time.Now()

	// Never-received readings stay at the placeholder even under an
	// effectively infinite freshness window.
	for _, staleAfter := range []time.Duration{0, time.Second, 1000 * time.Hour} {
		view := store.Snapshot(now, staleAfter)
		require.Len(t, view, len(Readings()))
		for _, reading := range Readings() {
			assert.Equal(t, AwaitingData, view[reading])
		}
	}

	_, _, ok := store.Last(Temperature)
	assert.False(t, ok)
}

func TestSnapshotFreshnessBoundary(t *testing.T) {
	store := NewStore()
	base := time.Unix(1000, 0)
	staleAfter := 5 * time.Second

	store.Update(Temperature, "36.5", base)

	// An age of exactly staleAfter is still fresh.
	view := store.Snapshot(base.Add(staleAfter), staleAfter)
	assert.Equal(t, "36.5", view[Temperature])

	view = store.Snapshot(base.Add(staleAfter+time.Nanosecond), staleAfter)
	assert.Equal(t, AwaitingData, view[Temperature])
}

func TestStaleValueStaysRetrievable(t *testing.T) {
	store := NewStore()
	base := time.Unix(1000, 0)

	store.Update(Angle, "45", base)

	view := store.Snapshot(base.Add(time.Hour), 5*time.Second)
	require.Equal(t, AwaitingData, view[Angle])

	// Stale through Snapshot, but remembered: Last still has the value,
	// distinguishing "received long ago" from "never received".
	value, at, ok := store.Last(Angle)
	require.True(t, ok)
	assert.Equal(t, "45", value)
	assert.Equal(t, base, at)
}

func TestUpdateKeepsTimestampMonotonic(t *testing.T) {
	store := NewStore()
	base := time.Unix(1000, 0)

	store.Update(Humidity, "60", base.Add(2*time.Second))
	store.Update(Humidity, "61", base.Add(time.Second))

	value, at, ok := store.Last(Humidity)
	require.True(t, ok)
	assert.Equal(t, "61", value)
	assert.Equal(t, base.Add(2*time.Second), at)
}

func TestUpdateIgnoresUnknownReading(t *testing.T) {
	store := NewStore()

	store.Update(Reading("pressure"), "1013", time.Now())

	view := store.Snapshot(time.Now(), time.Hour)
	assert.Len(t, view, len(Readings()))
	_, _, ok := store.Last(Reading("pressure"))
	assert.False(t, ok)
}

// Writers encode the same counter into the value and the timestamp; any
// reader observing a pair where they disagree has seen a torn record.
func TestConcurrentUpdateAndSnapshot(t *testing.T) {
	store := NewStore()
	base := time.Unix(1000, 0)
	staleAfter := time.Hour

	const iterations = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= iterations; i++ {
			store.Update(
				Temperature,
				strconv.Itoa(i),
				base.Add(time.Duration(i)*time.Millisecond),
			)
		}
	}()

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				value, at, ok := store.Last(Temperature)
				if !ok {
					continue
				}
				n, err := strconv.Atoi(value)
				assert.NoError(t, err)
				assert.Equal(t,
					base.Add(time.Duration(n)*time.Millisecond), at)

				view := store.Snapshot(at, staleAfter)
				if view[Temperature] != AwaitingData {
					_, err := strconv.Atoi(view[Temperature])
					assert.NoError(t, err)
				}
			}
		}()
	}

	wg.Wait()

	value, _, ok := store.Last(Temperature)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(iterations), value)
}
