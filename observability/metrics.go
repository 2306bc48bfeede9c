// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing setup for the layout engine and its HTTP surface.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load outcomes used as the "outcome" label of pubmap_snapshot_loads_total.
const (
	LoadOK        = "ok"
	LoadFailed    = "error"
	LoadStale     = "stale"
	LoadCancelled = "cancelled"
)

// Collector bundles the engine metrics. All methods are safe on a nil
// receiver so callers can run without metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Alpha        prometheus.Gauge
	Nodes        prometheus.Gauge
	Edges        prometheus.Gauge
	Year         prometheus.Gauge

	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Anomalies    *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	StreamClients prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}

	var err error
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pubmap_ticks_total",
		Help: "Simulation ticks integrated.",
	}), "pubmap_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubmap_tick_duration_seconds",
		Help:    "Wall time of one simulation tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.025, 0.05},
	}), "pubmap_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Alpha, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_alpha",
		Help: "Current simulation temperature.",
	}), "pubmap_alpha"); err != nil {
		return nil, err
	}
	if c.Nodes, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_nodes",
		Help: "Nodes in the live graph.",
	}), "pubmap_nodes"); err != nil {
		return nil, err
	}
	if c.Edges, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_edges",
		Help: "Edges in the live graph.",
	}), "pubmap_edges"); err != nil {
		return nil, err
	}
	if c.Year, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_year",
		Help: "Year of the snapshot on display.",
	}), "pubmap_year"); err != nil {
		return nil, err
	}
	if c.Loads, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_snapshot_loads_total",
		Help: "Snapshot loads, labeled by outcome (ok, error, stale, cancelled).",
	}, []string{"outcome"}), "pubmap_snapshot_loads_total"); err != nil {
		return nil, err
	}
	if c.LoadDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubmap_snapshot_load_duration_seconds",
		Help:    "Time from snapshot request to delivery.",
		Buckets: prometheus.DefBuckets,
	}), "pubmap_snapshot_load_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Anomalies, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_reconcile_anomalies_total",
		Help: "Entities skipped during reconciliation, labeled by kind.",
	}, []string{"kind"}), "pubmap_reconcile_anomalies_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_http_requests_total",
		Help: "HTTP API requests, labeled by route and status code.",
	}, []string{"route", "code"}), "pubmap_http_requests_total"); err != nil {
		return nil, err
	}
	if c.StreamClients, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_stream_clients",
		Help: "Connected frame stream clients.",
	}), "pubmap_stream_clients"); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveTick records one integrated tick.
func (c *Collector) ObserveTick(d time.Duration, alpha float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Alpha.Set(alpha)
}

// SetGraph records the live graph size and year.
func (c *Collector) SetGraph(year, nodes, edges int) {
	if c == nil {
		return
	}
	c.Year.Set(float64(year))
	c.Nodes.Set(float64(nodes))
	c.Edges.Set(float64(edges))
}

// RecordLoad counts a load outcome. A zero duration is not observed.
func (c *Collector) RecordLoad(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Loads.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.LoadDuration.Observe(d.Seconds())
	}
}

// RecordAnomaly counts a reconciliation anomaly of the given kind.
func (c *Collector) RecordAnomaly(kind string) {
	if c == nil {
		return
	}
	c.Anomalies.WithLabelValues(kind).Inc()
}

// RecordRequest counts an HTTP request.
func (c *Collector) RecordRequest(route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// StreamOpened and StreamClosed track stream subscribers.
func (c *Collector) StreamOpened() {
	if c != nil {
		c.StreamClients.Inc()
	}
}

func (c *Collector) StreamClosed() {
	if c != nil {
		c.StreamClients.Dec()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
