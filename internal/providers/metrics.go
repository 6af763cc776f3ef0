package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perpgate",
		Subsystem: "provider",
		Name:      "call_attempts_total",
		Help:      "Provider call attempts by outcome class.",
	}, []string{"provider", "op", "outcome"})

	exhaustionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perpgate",
		Subsystem: "provider",
		Name:      "retry_exhaustions_total",
		Help:      "Provider calls that exhausted their retry budget.",
	}, []string{"provider", "op"})
)
