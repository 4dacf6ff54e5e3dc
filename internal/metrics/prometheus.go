package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector は Metrics を Prometheus 形式で公開する
type Collector struct {
	m *Metrics

	submitted  *prometheus.Desc
	completed  *prometheus.Desc
	panicked   *prometheus.Desc
	avgLatency *prometheus.Desc
	p99Latency *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector は namespace 配下のメトリクス定義を持つ Collector を作成する
func NewCollector(namespace string, m *Metrics) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "pool", n)
	}
	return &Collector{
		m: m,
		submitted: prometheus.NewDesc(name("jobs_submitted_total"),
			"Total number of jobs submitted to the pool", nil, nil),
		completed: prometheus.NewDesc(name("jobs_completed_total"),
			"Total number of jobs that returned normally", nil, nil),
		panicked: prometheus.NewDesc(name("jobs_panicked_total"),
			"Total number of jobs that panicked", nil, nil),
		avgLatency: prometheus.NewDesc(name("job_latency_average_seconds"),
			"Average job execution time", nil, nil),
		p99Latency: prometheus.NewDesc(name("job_latency_p99_seconds"),
			"Sampled 99th percentile job execution time", nil, nil),
	}
}

// Describe は prometheus.Collector の実装
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.completed
	ch <- c.panicked
	ch <- c.avgLatency
	ch <- c.p99Latency
}

// Collect は prometheus.Collector の実装
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(c.m.SubmittedJobs()))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(c.m.CompletedJobs()))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.CounterValue, float64(c.m.PanickedJobs()))
	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, c.m.AverageLatency().Seconds())
	ch <- prometheus.MustNewConstMetric(c.p99Latency, prometheus.GaugeValue, c.m.P99Latency().Seconds())
}
