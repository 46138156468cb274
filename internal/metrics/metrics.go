package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"segment-filter-generator/internal/parser"
	"segment-filter-generator/internal/utils"
)

// Recorder collects counters for one generator run. They are written once
// at exit in the Prometheus text format, for node_exporter's textfile
// collector.
type Recorder struct {
	registry *prometheus.Registry

	recordsTotal     *prometheus.CounterVec
	diagnosticsTotal *prometheus.CounterVec
	rulesTotal       *prometheus.CounterVec
	groups           prometheus.Gauge
	lastRun          prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentgen_records_total",
			Help: "Mapping records accepted, by input and mapping kind.",
		}, []string{"input", "kind"}),
		diagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentgen_diagnostics_total",
			Help: "Dropped address tokens and records, by reason.",
		}, []string{"input", "reason"}),
		rulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentgen_rules_total",
			Help: "Filter rules emitted, by rule kind.",
		}, []string{"rule"}),
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segmentgen_mapping_groups",
			Help: "Distinct (tag, kind, name) groups in the generated filter.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segmentgen_last_run_timestamp_seconds",
			Help: "Unix time the generator last completed.",
		}),
	}
	r.registry.MustRegister(r.recordsTotal, r.diagnosticsTotal, r.rulesTotal, r.groups, r.lastRun)
	return r
}

func diagnosticReason(d *parser.Diagnostic) string {
	switch {
	case errors.Is(d, utils.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(d, parser.ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(d, parser.ErrUnsupportedObject):
		return "unsupported_object"
	default:
		return "other"
	}
}

// ObserveResult counts the records and diagnostics of one input type.
func (r *Recorder) ObserveResult(input string, result *parser.Result) {
	if result == nil {
		return
	}
	for _, rec := range result.Records {
		r.recordsTotal.WithLabelValues(input, rec.Kind.String()).Inc()
	}
	for _, d := range result.Diagnostics {
		r.diagnosticsTotal.WithLabelValues(input, diagnosticReason(d)).Inc()
	}
}

// ObserveRules records the emitted rule counts and index size.
func (r *Recorder) ObserveRules(counts map[string]int, groups int) {
	for rule, n := range counts {
		r.rulesTotal.WithLabelValues(rule).Add(float64(n))
	}
	r.groups.Set(float64(groups))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile stamps the completion time and writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	r.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, r.registry)
}
