package panel

import (
	"fmt"
	"log/slog"
)

// UnknownTopicError indicates that a message arrived on a topic outside the
// registry. It is only ever logged; unknown topics are dropped, not surfaced.
type UnknownTopicError struct {
	Topic string
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("message on unregistered topic %q dropped", e.Topic)
}

func (e *UnknownTopicError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("topic", e.Topic)}
}

// Registry is an immutable mapping from wire topic name to Reading. It is
// populated once at startup and never mutated after the subscriber starts.
type Registry struct {
	topics map[string]Reading
}

// NewRegistry copies the given topic mapping into a Registry.
func NewRegistry(topics map[string]Reading) Registry {
	m := make(map[string]Reading, len(topics))
	for topic, reading := range topics {
		m[topic] = reading
	}
	return Registry{topics: m}
}

// DefaultRegistry returns the deployed topic set of the bedside sensors.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Reading{
		"hospital/cama/temperatura": Temperature,
		"hospital/cama/umidade":     Humidity,
		"hospital/cama/angulo":      Angle,
		"hospital/cama01/alerta":    Alert,
	})
}

// Resolve looks up the Reading for a wire topic.
func (r Registry) Resolve(topic string) (Reading, bool) {
	reading, ok := r.topics[topic]
	return reading, ok
}

// Topics returns the configured wire topic set, for subscribing.
func (r Registry) Topics() []string {
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	return topics
}
