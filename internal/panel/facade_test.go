package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func TestFacadeCurrent(t *testing.T) {
	registry := NewRegistry(map[string]Reading{
		"t/temp": Temperature,
		"t/hum":  Humidity,
	})
	store := NewStore()

	base := time.Unix(0, 0)
	clock := &fakeClock{now: base}
	facade := NewFacade(store, clock)

	reading, ok := registry.Resolve("t/temp")
	require.True(t, ok)
	store.Update(reading, "36.5", base)

	clock.now = base.Add(4 * time.Second)
	view := facade.Current(5 * time.Second)
	assert.Equal(t, "36.5", view[Temperature])
	assert.Equal(t, AwaitingData, view[Humidity])

	clock.now = base.Add(6 * time.Second)
	view = facade.Current(5 * time.Second)
	assert.Equal(t, AwaitingData, view[Temperature])
	assert.Equal(t, AwaitingData, view[Humidity])
}

func TestFacadeDefaultsToWallClock(t *testing.T) {
	store := NewStore()
	facade := NewFacade(store, nil)

	store.Update(Alert, "ATIVO", time.Now())
	view := facade.Current(5 * time.Second)
	assert.Equal(t, "ATIVO", view[Alert])
}
