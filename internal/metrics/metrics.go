package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeps_total",
			Help: "Reconciliation sweeps run",
		},
		[]string{"trigger"}, // cron|recovery
	)

	SweepRecordsChecked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_records_checked_total",
			Help: "Candidate records probed during sweeps",
		},
		[]string{"record"}, // deposit|gift_card|redemption
	)

	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlements applied",
		},
		[]string{"record", "outcome"}, // outcome: completed|failed
	)

	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries appended",
		},
		[]string{"kind"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(SweepRecordsChecked)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(LedgerEntriesTotal)
	prometheus.MustRegister(WorkerQueueDepth)
}
