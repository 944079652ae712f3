package wager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_plays_total",
		Help: "Resolved plays by variant and result.",
	}, []string{"variant", "result"})

	wageredKCTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_wagered_kc_total",
		Help: "Total KC debited as bets.",
	})

	paidOutKCTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_paid_out_kc_total",
		Help: "Total KC credited as payouts and spin rewards.",
	})

	spinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_daily_spins_total",
		Help: "Daily spins by billing mode.",
	}, []string{"mode"})

	compensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_compensations_total",
		Help: "Automatic compensating refund entries written.",
	})

	reconciliationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_reconciliation_flags_total",
		Help: "Plays escalated for manual reconciliation.",
	})
)
