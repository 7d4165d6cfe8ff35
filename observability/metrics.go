package observability

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	runtimeMetricsOnce sync.Once
	runtimeRegistry    *RuntimeMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording HTTP API
// activity per module and route.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module, route and outcome.",
			}, []string{"module", "route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, route and status code.",
			}, []string{"module", "route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "portal",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Requests rejected by throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. status is the HTTP status
// written to the client.
func (m *moduleMetrics) Observe(module, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module, route = orUnknown(module), orUnknown(route)
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, route, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(module, route, outcome).Inc()
	m.latency.WithLabelValues(module, route).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(orUnknown(module), reason).Inc()
}

// RuntimeMetrics tracks atomic ledger operations.
type RuntimeMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// Runtime returns the singleton registry for ledger operations.
func Runtime() *RuntimeMetrics {
	runtimeMetricsOnce.Do(func() {
		runtimeRegistry = &RuntimeMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "runtime",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "runtime",
				Name:      "failures_total",
				Help:      "Reverted ledger operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "portal",
				Subsystem: "runtime",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing ledger operations, commit included.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(runtimeRegistry.operations, runtimeRegistry.failures, runtimeRegistry.latency)
	})
	return runtimeRegistry
}

// Observe records an operation. kind is the error classification when the
// operation reverted and empty on success.
func (m *RuntimeMetrics) Observe(operation, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = orUnknown(operation)
	outcome := "committed"
	if kind != "" {
		outcome = "reverted"
		m.failures.WithLabelValues(operation, kind).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// LedgerMetrics exposes point-in-time balances of the liquidity pool and the
// portals.
type LedgerMetrics struct {
	phase         prometheus.Gauge
	reserve       prometheus.Gauge
	rewardPool    prometheus.Gauge
	rewardsRemain prometheus.Gauge
	staked        *prometheus.GaugeVec
}

// Ledger returns the singleton registry for pool and portal balances.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			phase: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Subsystem: "liquidity",
				Name:      "active",
				Help:      "1 once the liquidity pool left its funding phase.",
			}),
			reserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Subsystem: "liquidity",
				Name:      "reserve",
				Help:      "Reserve asset available to the energy curves.",
			}),
			rewardPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Subsystem: "liquidity",
				Name:      "funding_reward_pool",
				Help:      "Reserve asset set aside for bonding token holders.",
			}),
			rewardsRemain: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Subsystem: "liquidity",
				Name:      "funding_rewards_remaining",
				Help:      "Rewards that may still accrue before the funding cap is reached.",
			}),
			staked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "portal",
				Subsystem: "portal",
				Name:      "principal_staked",
				Help:      "Principal staked per portal asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.phase,
			ledgerRegistry.reserve,
			ledgerRegistry.rewardPool,
			ledgerRegistry.rewardsRemain,
			ledgerRegistry.staked,
		)
	})
	return ledgerRegistry
}

// RecordPool updates the liquidity gauges.
func (m *LedgerMetrics) RecordPool(active bool, reserve, rewardPool, collected, maxRewards *big.Int) {
	if m == nil {
		return
	}
	if active {
		m.phase.Set(1)
	} else {
		m.phase.Set(0)
	}
	m.reserve.Set(bigToFloat(reserve))
	m.rewardPool.Set(bigToFloat(rewardPool))
	remaining := bigToFloat(maxRewards) - bigToFloat(collected)
	if remaining < 0 {
		remaining = 0
	}
	m.rewardsRemain.Set(remaining)
}

// RecordStaked updates the staked principal gauge for asset.
func (m *LedgerMetrics) RecordStaked(asset string, staked *big.Int) {
	if m == nil {
		return
	}
	m.staked.WithLabelValues(labelAsset(asset)).Set(bigToFloat(staked))
}

func orUnknown(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "unknown"
	}
	return value
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
