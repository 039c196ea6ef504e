package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes recorded by RowsProcessed.
const (
	OutcomeOK         = "ok"
	OutcomeDeadLetter = "dead_letter"
)

// Metrics is a private registry for one batch run.
type Metrics struct {
	reg              *prometheus.Registry
	RowsProcessed    *prometheus.CounterVec
	DeadLetters      *prometheus.CounterVec
	OrdersReconciled prometheus.Counter
	StageDuration    *prometheus.HistogramVec
	LastSuccess      prometheus.Gauge
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderetl_rows_processed_total",
		Help: "Source rows handled by ingestion, by stage and outcome.",
	}, []string{"stage", "outcome"})
	deadLetters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderetl_dead_letters_total",
		Help: "Dead-letter records written, by source tag.",
	}, []string{"source"})
	reconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderetl_orders_reconciled_total",
		Help: "Orders whose customer_id was filled by the reconciliation pass.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderetl_stage_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderetl_last_success_timestamp_seconds",
	})

	r.MustRegister(rows, deadLetters, reconciled, duration, lastSuccess)
	return &Metrics{
		reg:              r,
		RowsProcessed:    rows,
		DeadLetters:      deadLetters,
		OrdersReconciled: reconciled,
		StageDuration:    duration,
		LastSuccess:      lastSuccess,
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
