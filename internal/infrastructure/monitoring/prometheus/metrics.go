package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric trialscope exports.
type AppMetrics struct {
	// HTTP API
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Upstream sources (chembl, ncbi, ollama)
	SourceRequestsTotal    CounterVec
	SourceRequestDuration  HistogramVec
	SourceRateLimitedTotal CounterVec

	// Enrichment engine
	LookupsDegradedTotal CounterVec
	ApprovalTierTotal    CounterVec

	// Pipelines and sinks
	PipelineRunsTotal   CounterVec
	PipelineRunDuration HistogramVec
	PipelineRowsTotal   CounterVec
	SinkWritesTotal     CounterVec
	TrialQueryDuration  HistogramVec

	ServiceUp GaugeVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultSourceDurationBuckets   = []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultPipelineDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.SourceRequestsTotal = collector.RegisterCounter("source_requests_total", "Upstream source requests by outcome", "source", "op", "outcome")
	m.SourceRequestDuration = collector.RegisterHistogram("source_request_duration_seconds", "Upstream source request duration", DefaultSourceDurationBuckets, "source", "op")
	m.SourceRateLimitedTotal = collector.RegisterCounter("source_rate_limited_total", "Rate-limit signals received from upstream sources", "source")

	m.LookupsDegradedTotal = collector.RegisterCounter("lookups_degraded_total", "Lookups that degraded to a sentinel value", "source", "op", "reason")
	m.ApprovalTierTotal = collector.RegisterCounter("approval_tier_total", "Approval classifications by tier", "tier")

	m.PipelineRunsTotal = collector.RegisterCounter("pipeline_runs_total", "Pipeline runs by status", "pipeline", "status")
	m.PipelineRunDuration = collector.RegisterHistogram("pipeline_run_duration_seconds", "Pipeline run duration", DefaultPipelineDurationBuckets, "pipeline")
	m.PipelineRowsTotal = collector.RegisterCounter("pipeline_rows_total", "Output rows produced", "pipeline")
	m.SinkWritesTotal = collector.RegisterCounter("sink_writes_total", "Sink writes by outcome", "sink", "outcome")
	m.TrialQueryDuration = collector.RegisterHistogram("trial_query_duration_seconds", "AACT query duration", DefaultDBDurationBuckets, "query")

	m.ServiceUp = collector.RegisterGauge("service_up", "Component health (1=up, 0=down)", "component")

	return m
}

// RecordHTTPRequest records one served API request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSourceRequest records one upstream call. outcome is one of ok,
// not_found, rate_limited, transient, malformed.
func (m *AppMetrics) RecordSourceRequest(source, op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, op, outcome).Inc()
	m.SourceRequestDuration.WithLabelValues(source, op).Observe(duration.Seconds())
	if outcome == "rate_limited" {
		m.SourceRateLimitedTotal.WithLabelValues(source).Inc()
	}
}

// RecordDegraded records a lookup that fell back to a sentinel.
func (m *AppMetrics) RecordDegraded(source, op, reason string) {
	if m == nil {
		return
	}
	m.LookupsDegradedTotal.WithLabelValues(source, op, reason).Inc()
}

// RecordApproval records one approval classification.
func (m *AppMetrics) RecordApproval(tier string) {
	if m == nil {
		return
	}
	m.ApprovalTierTotal.WithLabelValues(tier).Inc()
}

// RecordPipelineRun records a finished pipeline run.
func (m *AppMetrics) RecordPipelineRun(pipeline string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.PipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
	m.PipelineRunDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
	m.PipelineRowsTotal.WithLabelValues(pipeline).Add(float64(rows))
}

// RecordSinkWrite records one sink write.
func (m *AppMetrics) RecordSinkWrite(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SinkWritesTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordTrialQuery records one AACT query duration.
func (m *AppMetrics) RecordTrialQuery(query string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TrialQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetUp marks a component up or down.
func (m *AppMetrics) SetUp(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.ServiceUp.WithLabelValues(component).Set(v)
}
