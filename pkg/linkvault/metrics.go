package linkvault

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkvault_records_created_total",
		Help: "Number of records created, by kind",
	}, []string{"kind"})

	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkvault_reads_total",
		Help: "Number of read attempts, by outcome",
	}, []string{"outcome"})

	recordsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkvault_records_removed_total",
		Help: "Number of records removed, by reason",
	}, []string{"reason"})

	blobDeleteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkvault_blob_delete_failures_total",
		Help: "Number of best-effort blob deletions that failed",
	})

	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkvault_sweep_runs_total",
		Help: "Number of expiry sweeps",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkvault_sweep_duration_seconds",
		Help:    "Duration of expiry sweeps in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// removal reasons
const (
	reasonExpired   = "expired"
	reasonViewLimit = "view_limit"
	reasonConsumed  = "consumed"
	reasonManual    = "manual"
	reasonSweep     = "sweep"
)

func readOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrViewLimitExceeded):
		return "view_limit"
	case errors.Is(err, ErrPasswordRequired):
		return "password_required"
	case errors.Is(err, ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, ErrKindMismatch):
		return "kind_mismatch"
	default:
		return "error"
	}
}
