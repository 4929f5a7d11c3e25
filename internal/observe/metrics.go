// Package observe provides observability primitives for the reference host
// simulator: OpenTelemetry metrics, distributed tracing, and a Prometheus
// exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all aici-go metrics.
const meterName = "github.com/aici-run/aici-go"

// Metrics holds all OpenTelemetry metric instruments used by the reference
// host simulator. All fields are safe for concurrent use — the underlying
// OTel types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per decoding-round phase ---

	// PreProcessDuration tracks pre-process callback latency.
	PreProcessDuration metric.Float64Histogram

	// MidProcessDuration tracks mid-process callback latency, including any
	// skip-chain work.
	MidProcessDuration metric.Float64Histogram

	// PostProcessDuration tracks post-process callback latency.
	PostProcessDuration metric.Float64Histogram

	// ConstraintBuildDuration tracks how long an [aici.Constraint] took to
	// construct, recorded on the first mid-process against its primitive
	// (whether it was built lazily there or by GenTokens before the first
	// await).
	ConstraintBuildDuration metric.Float64Histogram

	// --- Counters ---

	// DecodingRounds counts completed decoding rounds. Use with attribute:
	//   attribute.String("sequence", ...)
	DecodingRounds metric.Int64Counter

	// SkipChainLength records how many marker primitives (fork, wait-vars)
	// a single mid-process call chained through before reaching a real
	// sampling decision.
	SkipChainLength metric.Int64Histogram

	// Forks counts sequence forks. Use with attribute:
	//   attribute.Int("fan_out", n)
	Forks metric.Int64Counter

	// Backtracks counts non-zero backtrack splices.
	Backtracks metric.Int64Counter

	// FillerRounds counts rounds where the suspend-after-skip filler token
	// was used.
	FillerRounds metric.Int64Counter

	// ContractViolations counts recovered [aici.ContractViolationError]
	// panics. Use with attribute:
	//   attribute.String("sequence", ...)
	ContractViolations metric.Int64Counter

	// --- Gauges ---

	// ActiveSequences tracks the number of live Driver instances.
	ActiveSequences metric.Int64UpDownCounter

	// --- Wire transport ---

	// WireRequestDuration tracks host<->controller wire round-trip time.
	WireRequestDuration metric.Float64Histogram

	// HTTPRequestDuration tracks latency of the admin/health HTTP surface
	// (distinct from the wire protocol, which runs over WebSocket).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// sub-decoding-step latencies rather than network round trips.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PreProcessDuration, err = m.Float64Histogram("aici.pre_process.duration",
		metric.WithDescription("Latency of the pre-process callback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MidProcessDuration, err = m.Float64Histogram("aici.mid_process.duration",
		metric.WithDescription("Latency of the mid-process callback, including skip chains."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PostProcessDuration, err = m.Float64Histogram("aici.post_process.duration",
		metric.WithDescription("Latency of the post-process callback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConstraintBuildDuration, err = m.Float64Histogram("aici.constraint.build_duration",
		metric.WithDescription("Latency of constructing a Constraint, recorded on its first mid-process."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.DecodingRounds, err = m.Int64Counter("aici.decoding_rounds",
		metric.WithDescription("Total completed decoding rounds."),
	); err != nil {
		return nil, err
	}
	if met.SkipChainLength, err = m.Int64Histogram("aici.skip_chain.length",
		metric.WithDescription("Number of marker primitives chained through per mid-process call."),
	); err != nil {
		return nil, err
	}
	if met.Forks, err = m.Int64Counter("aici.forks",
		metric.WithDescription("Total sequence forks, by fan-out size."),
	); err != nil {
		return nil, err
	}
	if met.Backtracks, err = m.Int64Counter("aici.backtracks",
		metric.WithDescription("Total non-zero backtrack splices."),
	); err != nil {
		return nil, err
	}
	if met.FillerRounds, err = m.Int64Counter("aici.filler_rounds",
		metric.WithDescription("Total rounds where the suspend-after-skip filler token was used."),
	); err != nil {
		return nil, err
	}
	if met.ContractViolations, err = m.Int64Counter("aici.contract_violations",
		metric.WithDescription("Total recovered contract-violation panics, by sequence."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSequences, err = m.Int64UpDownCounter("aici.active_sequences",
		metric.WithDescription("Number of currently live Driver instances."),
	); err != nil {
		return nil, err
	}

	if met.WireRequestDuration, err = m.Float64Histogram("aici.wire.request.duration",
		metric.WithDescription("Host<->controller wire round-trip latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("aici.http.request.duration",
		metric.WithDescription("Latency of the admin/health HTTP surface."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRound records one completed decoding round for sequence.
func (m *Metrics) RecordRound(ctx context.Context, sequence string) {
	m.DecodingRounds.Add(ctx, 1, metric.WithAttributes(attribute.String("sequence", sequence)))
}

// RecordFork records a fork with the given fan-out.
func (m *Metrics) RecordFork(ctx context.Context, fanOut int) {
	m.Forks.Add(ctx, 1, metric.WithAttributes(attribute.Int("fan_out", fanOut)))
}

// RecordBacktrack records a non-zero backtrack splice.
func (m *Metrics) RecordBacktrack(ctx context.Context) {
	m.Backtracks.Add(ctx, 1)
}

// RecordFillerRound records a round where the suspend-after-skip filler was
// used.
func (m *Metrics) RecordFillerRound(ctx context.Context) {
	m.FillerRounds.Add(ctx, 1)
}

// RecordContractViolation records a recovered contract-violation panic for
// sequence.
func (m *Metrics) RecordContractViolation(ctx context.Context, sequence string) {
	m.ContractViolations.Add(ctx, 1, metric.WithAttributes(attribute.String("sequence", sequence)))
}
