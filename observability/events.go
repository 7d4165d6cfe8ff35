package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"portalchain/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed ledger events segmented by module and type.",
			}, []string{"module", "type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record counts an event type such as "portal.staked".
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	module, name, found := strings.Cut(strings.TrimSpace(eventType), ".")
	if !found {
		module, name = "unknown", module
	}
	m.emitted.WithLabelValues(orUnknown(module), orUnknown(name)).Inc()
}

// EventCounter is an emitter that counts every event it receives.
type EventCounter struct{}

// Emit implements events.Emitter.
func (EventCounter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().Record(evt.EventType())
}
