// observability.go: Metrics and tracing for container builds, resolutions and adapters
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metric names recorded by the host.
const (
	MetricContainerBuilds     = "container_builds_total"
	MetricContainerBuildTime  = "container_build_seconds"
	MetricContainerParts      = "container_parts"
	MetricResolutions         = "resolutions_total"
	MetricAdapterBuilds       = "adapter_builds_total"
	MetricConfigurationReload = "configuration_updates_total"
)

// TracerName is the instrumentation scope of the spans emitted by the host.
const TracerName = "github.com/agilira/go-plughost"

// MetricsCollector receives the metrics of a host.
//
// Example usage:
//
//	collector.IncrementCounter("plughost_resolutions_total",
//	    map[string]string{"contract": "Renderer"}, 1)
//	collector.RecordHistogram("plughost_container_build_seconds",
//	    map[string]string{"strategy": "global"}, 0.004)
type MetricsCollector interface {
	// Counter metrics
	IncrementCounter(name string, labels map[string]string, value int64)

	// Gauge metrics
	SetGauge(name string, labels map[string]string, value float64)

	// Histogram metrics
	RecordHistogram(name string, labels map[string]string, value float64)

	// Get current metrics snapshot
	GetMetrics() map[string]interface{}
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// Metrics
	MetricsEnabled   bool             `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsCollector MetricsCollector `json:"-" yaml:"-"`
	MetricsPrefix    string           `json:"metrics_prefix" yaml:"metrics_prefix"`

	// Tracing. A nil provider uses the global OpenTelemetry provider.
	TracingEnabled bool                 `json:"tracing_enabled" yaml:"tracing_enabled"`
	TracerProvider trace.TracerProvider `json:"-" yaml:"-"`
}

// DefaultObservabilityConfig returns the default configuration: in-memory
// metrics, tracing through the global provider.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		MetricsEnabled:   true,
		MetricsCollector: NewDefaultMetricsCollector(),
		MetricsPrefix:    "plughost",
		TracingEnabled:   true,
	}
}

// observability records the host metrics. A nil *observability records
// nothing.
type observability struct {
	metrics MetricsCollector
	prefix  string
	tracer  trace.Tracer
}

func newObservability(config ObservabilityConfig) *observability {
	obs := &observability{prefix: config.MetricsPrefix}
	if config.MetricsEnabled && config.MetricsCollector != nil {
		obs.metrics = config.MetricsCollector
	}
	if config.TracingEnabled {
		provider := config.TracerProvider
		if provider == nil {
			provider = otel.GetTracerProvider()
		}
		obs.tracer = provider.Tracer(TracerName)
	}
	if obs.metrics == nil && obs.tracer == nil {
		return nil
	}
	return obs
}

func (o *observability) name(metric string) string {
	if o.prefix == "" {
		return metric
	}
	return o.prefix + "_" + metric
}

func (o *observability) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, noop.Span{}
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *observability) recordSpanError(span trace.Span, err error) {
	if o == nil || o.tracer == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code := ErrorCodeOf(err); code != "" {
		span.SetAttributes(attribute.String("plughost.error_code", string(code)))
	}
}

func (o *observability) recordContainerBuild(strategy string, parts int, elapsed time.Duration) {
	if o == nil || o.metrics == nil {
		return
	}
	labels := map[string]string{"strategy": strategy}
	o.metrics.IncrementCounter(o.name(MetricContainerBuilds), labels, 1)
	o.metrics.RecordHistogram(o.name(MetricContainerBuildTime), labels, elapsed.Seconds())
	o.metrics.SetGauge(o.name(MetricContainerParts), labels, float64(parts))
}

func (o *observability) recordResolution(contract string, count int) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.IncrementCounter(o.name(MetricResolutions), map[string]string{"contract": contract}, int64(count))
}

func (o *observability) recordAdapterBuild(contract string, err error) {
	if o == nil || o.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.IncrementCounter(o.name(MetricAdapterBuilds), map[string]string{
		"contract": contract,
		"status":   status,
	}, 1)
}

func (o *observability) recordConfigurationUpdate(changed bool) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.IncrementCounter(o.name(MetricConfigurationReload), map[string]string{
		"changed": fmt.Sprintf("%t", changed),
	}, 1)
}

// DefaultMetricsCollector provides a basic in-memory metrics collector
type DefaultMetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewDefaultMetricsCollector creates a new default metrics collector
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter implements MetricsCollector
func (dmc *DefaultMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	dmc.counters[metricKey(name, labels)] += value
}

// SetGauge implements MetricsCollector
func (dmc *DefaultMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	dmc.gauges[metricKey(name, labels)] = value
}

// RecordHistogram implements MetricsCollector
func (dmc *DefaultMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	key := metricKey(name, labels)
	dmc.histograms[key] = append(dmc.histograms[key], value)

	// Keep only last 1000 values to prevent memory growth
	if len(dmc.histograms[key]) > 1000 {
		dmc.histograms[key] = dmc.histograms[key][len(dmc.histograms[key])-1000:]
	}
}

// Counter returns the value of one counter series.
func (dmc *DefaultMetricsCollector) Counter(name string, labels map[string]string) int64 {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()

	return dmc.counters[metricKey(name, labels)]
}

// GetMetrics implements MetricsCollector
func (dmc *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()

	metrics := make(map[string]interface{})
	for k, v := range dmc.counters {
		metrics[k] = v
	}
	for k, v := range dmc.gauges {
		metrics[k] = v
	}
	for k, v := range dmc.histograms {
		if len(v) == 0 {
			continue
		}
		sum := 0.0
		minVal, maxVal := v[0], v[0]
		for _, val := range v {
			sum += val
			minVal = min(minVal, val)
			maxVal = max(maxVal, val)
		}
		metrics[k+"_count"] = len(v)
		metrics[k+"_sum"] = sum
		metrics[k+"_min"] = minVal
		metrics[k+"_max"] = maxVal
		metrics[k+"_avg"] = sum / float64(len(v))
	}
	return metrics
}

// metricKey builds a series key from name and labels sorted by key.
func metricKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += fmt.Sprintf("_%s_%s", k, labels[k])
	}
	return key
}
