// Package telemetry exposes prometheus instrumentation for the agent
// subsystems. Counters are registered at init time and served by the HTTP
// layer on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayCalls counts structured model calls per role and result.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentmatch",
		Name:      "gateway_calls_total",
		Help:      "Structured LLM gateway calls by role and result.",
	}, []string{"role", "result"})

	// FallbackMessages counts synthetic messages inserted after retries
	// were exhausted or structured output could not be repaired.
	FallbackMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentmatch",
		Name:      "fallback_messages_total",
		Help:      "Synthetic fallback messages recorded in the ledger.",
	}, []string{"role"})

	// NegotiationRounds observes how many chat rounds negotiations take.
	NegotiationRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "talentmatch",
		Name:      "negotiation_rounds",
		Help:      "Chat rounds per finished negotiation.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})

	// NegotiationOutcomes counts final outcome classifications.
	NegotiationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentmatch",
		Name:      "negotiation_outcomes_total",
		Help:      "Final negotiation outcomes.",
	}, []string{"outcome"})

	// ToolInvocations counts dispatcher calls per tool and result.
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talentmatch",
		Name:      "tool_invocations_total",
		Help:      "Tool dispatcher invocations by tool name and result.",
	}, []string{"tool", "result"})

	// OrchestrationTurns observes outer loop turns per sourcing run.
	OrchestrationTurns = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "talentmatch",
		Name:      "orchestration_turns",
		Help:      "Outer planner/executor/observer turns per sourcing run.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})
)
