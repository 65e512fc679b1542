package event

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu    sync.RWMutex
	emittedTotal *prometheus.CounterVec
)

// RegisterMetrics starts counting committed events on registry.
func RegisterMetrics(registry prometheus.Registerer) error {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_events_emitted_total",
			Help: "Events committed to the event log, by event name",
		},
		[]string{"name"},
	)
	if err := registry.Register(counter); err != nil {
		return err
	}
	metricsMu.Lock()
	emittedTotal = counter
	metricsMu.Unlock()
	return nil
}

// Observe counts events after their operation committed.
func Observe(events []Event) {
	metricsMu.RLock()
	counter := emittedTotal
	metricsMu.RUnlock()
	if counter == nil {
		return
	}
	for _, evt := range events {
		counter.WithLabelValues(evt.Topic.Name).Inc()
	}
}
