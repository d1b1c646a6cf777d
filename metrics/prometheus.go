package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rlfeed"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// PrometheusCollector exposes a Collector's counters as Prometheus metrics.
// Values are read from a Snapshot on every scrape.
type PrometheusCollector struct {
	source   *Collector
	counters []counterDesc
	dropped  *prometheus.Desc
}

// NewPrometheusCollector bridges c into the Prometheus collector interface.
func NewPrometheusCollector(c *Collector) *PrometheusCollector {
	snap := c.Snapshot()
	labels := prometheus.Labels{
		"app_id":         snap.AppID,
		"sender_backend": snap.SenderBackend,
		"queue_mode":     snap.QueueMode,
	}

	counter := func(name, help string, value func(Snapshot) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels),
			value: value,
		}
	}

	return &PrometheusCollector{
		source: c,
		counters: []counterDesc{
			counter("lines_read_total", "Input lines read.", func(s Snapshot) int64 { return s.LinesRead }),
			counter("outcome_records_total", "Records classified as outcomes.", func(s Snapshot) int64 { return s.OutcomeRecords }),
			counter("decision_records_total", "Records classified as decisions.", func(s Snapshot) int64 { return s.DecisionRecords }),
			counter("dispatch_errors_total", "Fatal dispatch errors.", func(s Snapshot) int64 { return s.DispatchErrors }),
			counter("choose_calls_total", "Choose calls issued.", func(s Snapshot) int64 { return s.ChooseCalls }),
			counter("outcome_calls_total", "ReportOutcome calls issued.", func(s Snapshot) int64 { return s.OutcomeCalls }),
			counter("client_call_errors_total", "Failed synchronous client calls.", func(s Snapshot) int64 { return s.ClientCallErrors }),
			counter("background_errors_total", "Errors delivered to the error sink.", func(s Snapshot) int64 { return s.BackgroundErrors }),
			counter("sink_write_success_total", "Successful sink batch writes.", func(s Snapshot) int64 { return s.SinkWriteSuccess }),
			counter("sink_write_failure_total", "Failed sink batch writes.", func(s Snapshot) int64 { return s.SinkWriteFailure }),
		},
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "entries_dropped_total"),
			"Event log entries dropped by sender policies.",
			[]string{"kind"}, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	ch <- p.dropped
}

// Collect implements prometheus.Collector.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.source.Snapshot()
	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(snap)))
	}
	for kind, n := range snap.DroppedByKind {
		ch <- prometheus.MustNewConstMetric(p.dropped, prometheus.CounterValue, float64(n), kind)
	}
}

// Register registers a bridge for c on reg.
func Register(reg prometheus.Registerer, c *Collector) error {
	return reg.Register(NewPrometheusCollector(c))
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
