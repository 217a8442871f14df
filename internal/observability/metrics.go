package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CarMutations counts successful car and comment writes by operation.
	CarMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_car_mutations_total",
		Help: "Total number of car and comment mutations",
	}, []string{"operation"})

	// ConcurrencyConflicts counts version conflicts hit while saving cars.
	ConcurrencyConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_concurrency_conflicts_total",
		Help: "Total number of version conflicts seen while saving cars",
	}, []string{"operation"})

	// WebSocketConnections is the number of open car feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carlot_websocket_connections",
		Help: "Number of active car feed WebSocket connections",
	})

	// WebSocketBackpressureDrops counts feed messages dropped because a client fell behind.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)
