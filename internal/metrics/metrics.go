// Package metrics exposes Prometheus instrumentation for the ingestion and
// distribution pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngested counts log records accepted by the ingestion pipeline,
	// labeled by severity.
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "logtower",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Log records accepted by the ingestion pipeline.",
	}, []string{"severity"})

	// RecordsRejected counts log records rejected at validation.
	RecordsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logtower",
		Subsystem: "ingest",
		Name:      "rejected_total",
		Help:      "Log records rejected by ingestion validation.",
	})

	// MessagesDropped counts fan-out messages dropped because a subscriber's
	// queue was full.
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logtower",
		Subsystem: "broker",
		Name:      "dropped_total",
		Help:      "Messages dropped due to slow subscribers.",
	})

	// ActiveSubscribers tracks the number of live stream subscribers.
	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "logtower",
		Subsystem: "broker",
		Name:      "subscribers",
		Help:      "Currently connected stream subscribers.",
	})

	// TicketsCreated counts tickets created through the API.
	TicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logtower",
		Subsystem: "tickets",
		Name:      "created_total",
		Help:      "Tickets created.",
	})

	// TicketTransitions counts ticket status transitions, labeled by target
	// status.
	TicketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "logtower",
		Subsystem: "tickets",
		Name:      "transitions_total",
		Help:      "Ticket status transitions.",
	}, []string{"to"})
)
