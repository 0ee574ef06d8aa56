// Package metrics exposes server and roster activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urmzd/alpacaswitch/pkg/alpaca"
	"github.com/urmzd/alpacaswitch/pkg/device"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

const namespace = "alpaca"

// otherMethod labels method names outside the known set, keeping label
// cardinality bounded when clients send arbitrary paths.
const otherMethod = "other"

var (
	_ alpaca.Observer = (*Collector)(nil)
	_ roster.Observer = (*Collector)(nil)
)

// Collector owns a private registry and implements both alpaca.Observer and
// roster.Observer.
type Collector struct {
	registry *prometheus.Registry
	methods  map[string]bool

	Transactions      *prometheus.CounterVec
	RosterSwitches    prometheus.Gauge
	DiscoveryDuration prometheus.Histogram
	DiscoveryFailures prometheus.Counter
	CyclesSkipped     *prometheus.CounterVec
	LastPoll          prometheus.Gauge
	DeviceFailures    *prometheus.CounterVec
}

// NewCollector creates a collector. methods lists the method names reported
// verbatim; any other name is reported as "other".
func NewCollector(methods ...string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		methods:  make(map[string]bool, len(methods)),

		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Alpaca requests by API family, method and HTTP status",
		}, []string{"family", "method", "status"}),

		RosterSwitches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_switches",
			Help:      "Switches in the current roster",
		}),

		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of discovery cycles in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		DiscoveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_failures_total",
			Help:      "Discovery cycles that failed and kept the previous roster",
		}),

		CyclesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Background cycles skipped, by cycle and reason",
		}, []string{"cycle", "reason"}),

		LastPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last completed poll cycle",
		}),

		DeviceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_failures_total",
			Help:      "Failed device operations, by operation",
		}, []string{"operation"}),
	}
	for _, m := range methods {
		c.methods[m] = true
	}

	reg.MustRegister(
		c.Transactions,
		c.RosterSwitches,
		c.DiscoveryDuration,
		c.DiscoveryFailures,
		c.CyclesSkipped,
		c.LastPoll,
		c.DeviceFailures,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) TransactionCompleted(family alpaca.Family, method string, status int) {
	if !c.methods[method] {
		method = otherMethod
	}
	c.Transactions.WithLabelValues(string(family), method, strconv.Itoa(status)).Inc()
}

func (c *Collector) DiscoveryCompleted(switches int, elapsed time.Duration, err error) {
	c.DiscoveryDuration.Observe(elapsed.Seconds())
	c.RosterSwitches.Set(float64(switches))
	if err != nil {
		c.DiscoveryFailures.Inc()
	}
}

func (c *Collector) PollCompleted(switches, failures int) {
	c.LastPoll.SetToCurrentTime()
}

func (c *Collector) CycleSkipped(cycle roster.Cycle, reason string) {
	c.CyclesSkipped.WithLabelValues(string(cycle), reason).Inc()
}

func (c *Collector) DeviceFailed(operation string, info device.Info, err error) {
	c.DeviceFailures.WithLabelValues(operation).Inc()
}
