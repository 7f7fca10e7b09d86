package prometheus

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/artie-labs/warehouse/lib/maputil"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
)

const (
	PushgatewayURL = "url"
	Job            = "job"
	DefaultJob     = "warehouse"

	Namespace        = "namespace"
	DefaultNamespace = "warehouse"
)

// client keeps every metric in a private registry that is pushed to a Pushgateway on [Flush].
// A batch job exits before anything could scrape it, so there is no HTTP endpoint.
type client struct {
	namespace string
	registry  *prometheus.Registry
	pusher    *push.Pusher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusClient(settings map[string]any) (base.Client, error) {
	url := maputil.GetString(settings, PushgatewayURL, "")
	if url == "" {
		return nil, fmt.Errorf("prometheus requires a pushgateway %q setting", PushgatewayURL)
	}

	registry := prometheus.NewRegistry()
	return &client{
		namespace:  maputil.GetString(settings, Namespace, DefaultNamespace),
		registry:   registry,
		pusher:     push.New(url, maputil.GetString(settings, Job, DefaultJob)).Gatherer(registry),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}, nil
}

// metricName turns a dotted statsd style name such as `stage.duration` into `stage_duration`.
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func labelNames(tags map[string]string) []string {
	return slices.Sorted(maps.Keys(tags))
}

// register adds [collector] unless a metric with the same name exists, in which case the existing one is returned.
func register[T prometheus.Collector](registry *prometheus.Registry, collector T) (T, error) {
	if err := registry.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegistered.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (c *client) counter(name string, tags map[string]string) (prometheus.Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.counters[name]
	if !ok {
		var err error
		vec, err = register(c.registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      metricName(name) + "_total",
		}, labelNames(tags)))
		if err != nil {
			return nil, err
		}
		c.counters[name] = vec
	}
	return vec.GetMetricWith(tags)
}

func (c *client) gauge(name string, tags map[string]string) (prometheus.Gauge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.gauges[name]
	if !ok {
		var err error
		vec, err = register(c.registry, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      metricName(name),
		}, labelNames(tags)))
		if err != nil {
			return nil, err
		}
		c.gauges[name] = vec
	}
	return vec.GetMetricWith(tags)
}

func (c *client) histogram(name string, tags map[string]string) (prometheus.Observer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.histograms[name]
	if !ok {
		var err error
		vec, err = register(c.registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      metricName(name) + "_seconds",
			// Stages run from seconds to hours.
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, labelNames(tags)))
		if err != nil {
			return nil, err
		}
		c.histograms[name] = vec
	}
	return vec.GetMetricWith(tags)
}

func logDropped(name string, err error) {
	slog.Warn("Dropping metric", slog.String("name", name), slog.Any("err", err))
}

func (c *client) Timing(name string, value time.Duration, tags map[string]string) {
	observer, err := c.histogram(name, tags)
	if err != nil {
		logDropped(name, err)
		return
	}
	observer.Observe(value.Seconds())
}

func (c *client) Incr(name string, tags map[string]string) {
	c.Count(name, 1, tags)
}

func (c *client) Count(name string, value int64, tags map[string]string) {
	counter, err := c.counter(name, tags)
	if err != nil {
		logDropped(name, err)
		return
	}
	counter.Add(float64(value))
}

func (c *client) Gauge(name string, value float64, tags map[string]string) {
	gauge, err := c.gauge(name, tags)
	if err != nil {
		logDropped(name, err)
		return
	}
	gauge.Set(value)
}

func (c *client) Flush(ctx context.Context) error {
	if err := c.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
