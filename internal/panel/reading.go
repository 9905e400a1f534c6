// Package panel holds the shared state between the MQTT subscriber and the
// serving layer: the fixed set of bedside readings, the wire-topic registry,
// and the freshness-aware store of latest values.
package panel

// Reading identifies one of the fixed bedside readings.
type Reading string

const (
	Temperature Reading = "temperature"
	Humidity    Reading = "humidity"
	Angle       Reading = "angle"
	Alert       Reading = "alert"
)

// AwaitingData is the placeholder reported for a reading that has no fresh
// value. The literal is part of the wire contract with the panel frontend.
const AwaitingData = "awaiting data"

// Readings returns the full fixed set.
func Readings() []Reading {
	return []Reading{Temperature, Humidity, Angle, Alert}
}
