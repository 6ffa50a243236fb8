package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// --- Keeper entry points ---
	CallsApplied  *prometheus.CounterVec
	CallsRejected *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	Sequence      prometheus.Gauge

	// --- Supply & flows ---
	TokenTotalSupply   prometheus.Gauge
	TokenTotalBurned   prometheus.Gauge
	VaultBalance       prometheus.Gauge
	TotalStaked        prometheus.Gauge
	TotalUnstaked      prometheus.Gauge
	StakeAccounts      prometheus.Gauge
	OpenStakePositions prometheus.Gauge

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CallsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dragonx_calls_applied_total",
			Help: "Entry-point calls that committed",
		}, []string{"entry_point"}),

		CallsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dragonx_calls_rejected_total",
			Help: "Entry-point calls rolled back (guard, cooldown, validation)",
		}, []string{"entry_point", "reason"}),

		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dragonx_call_duration_seconds",
			Help:    "Time to execute a single entry-point call",
			Buckets: latencyBuckets,
		}, []string{"entry_point"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_sequence",
			Help: "Current global event sequence number",
		}),

		TokenTotalSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_token_total_supply",
			Help: "Protocol token supply (lossy float, monitoring only)",
		}),

		TokenTotalBurned: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_token_total_burned",
			Help: "Protocol tokens destroyed by the burn engine",
		}),

		VaultBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_vault_balance",
			Help: "Staking assets waiting for the next stake",
		}),

		TotalStaked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_total_staked",
			Help: "Cumulative staking assets locked",
		}),

		TotalUnstaked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_total_unstaked",
			Help: "Cumulative staking assets returned from closed stakes",
		}),

		StakeAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_stake_accounts",
			Help: "Deployed stake accounts",
		}),

		OpenStakePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_open_stake_positions",
			Help: "Stake positions opened and not yet closed",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dragonx_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dragonx_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dragonx_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dragonx_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dragonx_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dragonx_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dragonx_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dragonx_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dragonx_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dragonx_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dragonx_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dragonx_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
