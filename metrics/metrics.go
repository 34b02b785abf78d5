package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aasha_calls_total",
		Help: "Inbound calls answered",
	})

	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aasha_calls_active",
		Help: "Call sessions currently held in memory",
	})

	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aasha_turns_total",
		Help: "Dialogue turns by stage and event",
	}, []string{"stage", "event"})

	UnexpectedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aasha_unexpected_events_total",
		Help: "Events that arrived in a stage with no transition",
	}, []string{"stage", "event"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aasha_classifications_total",
		Help: "Utterance classifications by source (model or fallback) and emergency type",
	}, []string{"source", "emergency_type"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aasha_llm_requests_total",
		Help: "Language model requests by purpose and outcome",
	}, []string{"purpose", "outcome"})

	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aasha_llm_duration_seconds",
		Help:    "Language model latency including retries",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 16.0},
	}, []string{"purpose"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aasha_dispatches_total",
		Help: "Simulated dispatches by emergency type",
	}, []string{"emergency_type"})

	MonitorClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aasha_monitor_clients",
		Help: "Connected live monitor websockets",
	})
)
