package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PoolsTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_pools_tracked",
		Help: "Candidate pools in the current registry set",
	})

	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_registry_refresh_errors_total",
		Help: "Pool index refresh failures",
	})

	QuoteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_errors_total",
		Help: "Simulated quote calls that returned no quote",
	})

	ScanLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_scan_latency_seconds",
		Help:    "Time to scan all pair groups for opportunities",
		Buckets: prometheus.DefBuckets,
	})

	OpportunityNetUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_opportunity_net_usd",
		Help: "Net profit estimate of the last detected opportunity",
	})

	Executions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_executions_total",
		Help: "Flash-loan execution attempts by outcome",
	}, []string{"result"})

	Profit24h = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_profit_24h_usd",
		Help: "Realized profit over the trailing 24h window",
	})
)

func init() {
	prometheus.MustRegister(
		PoolsTracked,
		RefreshErrors,
		QuoteErrors,
		ScanLatency,
		OpportunityNetUSD,
		Executions,
		Profit24h,
	)
}
