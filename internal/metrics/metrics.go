// Package metrics defines the engine's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all engine collectors. Register once per process.
type Metrics struct {
	TurnDuration        *prometheus.HistogramVec
	TierSelected        *prometheus.CounterVec
	ValidationRejected  *prometheus.CounterVec
	SanityFixes         prometheus.Counter
	ConfirmationRewinds prometheus.Counter
	StepGateDrops       prometheus.Counter
	SpeakerCollisions   prometheus.Counter
	BudgetSkips         prometheus.Counter
	LaneTransitions     *prometheus.CounterVec
	TurnReplays         prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchboard_turn_duration_seconds",
				Help:    "End-to-end turn processing duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"lane"},
		),
		TierSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_tier_selected_total",
				Help: "Routing decisions by winning tier",
			},
			[]string{"tier"},
		),
		ValidationRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_validation_rejected_total",
				Help: "Slot writes rejected at validation time",
			},
			[]string{"reason"},
		),
		SanityFixes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_sanity_fixes_total",
			Help: "Stored slots cleared by the pre-advance sweep",
		}),
		ConfirmationRewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_confirmation_rewinds_total",
			Help: "Confirmations refused over invalid slots",
		}),
		StepGateDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_step_gate_drops_total",
			Help: "Speculative writes dropped by the step gate",
		}),
		SpeakerCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_speaker_collisions_total",
			Help: "Non-owner emissions discarded by the arbiter",
		}),
		BudgetSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_budget_skips_total",
			Help: "Assisted-tier invocations skipped over the daily cap",
		}),
		LaneTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_lane_transitions_total",
				Help: "Lane transitions by source and target",
			},
			[]string{"from", "to"},
		),
		TurnReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_turn_replays_total",
			Help: "Duplicate turn deliveries served from the idempotency record",
		}),
	}

	reg.MustRegister(
		m.TurnDuration,
		m.TierSelected,
		m.ValidationRejected,
		m.SanityFixes,
		m.ConfirmationRewinds,
		m.StepGateDrops,
		m.SpeakerCollisions,
		m.BudgetSkips,
		m.LaneTransitions,
		m.TurnReplays,
	)

	return m
}

// NewNop creates unregistered collectors for tests that don't scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
