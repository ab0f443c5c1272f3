// Package metrics exposes ionova's six named Prometheus series, labeled
// by shard, on a standard /metrics handler (§6 "Metrics").
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the six §6-named series, each keyed by a "shard" label
// so one registry serves every shard in the process.
type Metrics struct {
	Registry *prometheus.Registry

	TransactionsProcessedTotal *prometheus.CounterVec
	TransactionsPerSecond      *prometheus.GaugeVec
	MempoolSize                *prometheus.GaugeVec
	AvgLatencyMilliseconds     *prometheus.GaugeVec
	BlocksProducedTotal        *prometheus.CounterVec
	BatchCommitmentsTotal      *prometheus.CounterVec
}

// New builds and registers the full metric set against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TransactionsProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_processed_total",
			Help: "Total number of transactions processed.",
		}, []string{"shard"}),
		TransactionsPerSecond: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transactions_per_second",
			Help: "Current transactions per second.",
		}, []string{"shard"}),
		MempoolSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mempool_size",
			Help: "Current mempool size.",
		}, []string{"shard"}),
		AvgLatencyMilliseconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "avg_latency_milliseconds",
			Help: "Average transaction latency in milliseconds.",
		}, []string{"shard"}),
		BlocksProducedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blocks_produced_total",
			Help: "Total number of micro-blocks produced.",
		}, []string{"shard"}),
		BatchCommitmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_commitments_total",
			Help: "Total number of batch commitments submitted.",
		}, []string{"shard"}),
	}
}

// Handler returns the promhttp handler serving this registry's text
// exposition (§6 "/metrics").
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
