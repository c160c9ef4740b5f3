package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DimaJoyti/node-agent/internal/agent"
	"github.com/DimaJoyti/node-agent/internal/stats"
)

// statsCollector exposes the proxy's two stats.Engine snapshots and process
// uptime as Prometheus metrics alongside the JSON /stats endpoint, grounded
// on the teacher's promauto-based collectors (internal/object-detection/monitoring)
// but implemented as a prometheus.Collector so every scrape reads a fresh
// snapshot instead of a periodically-refreshed copy.
type statsCollector struct {
	coord *agent.Coordinator

	total       *prometheus.Desc
	ok          *prometheus.Desc
	fail        *prometheus.Desc
	successRate *prometheus.Desc
	avgMs       *prometheus.Desc
	tokensTotal *prometheus.Desc
	uptime      *prometheus.Desc
}

func newStatsCollector(coord *agent.Coordinator) *statsCollector {
	labels := []string{"service"}
	return &statsCollector{
		coord:       coord,
		total:       prometheus.NewDesc("node_agent_requests_total", "Total proxied requests.", labels, nil),
		ok:          prometheus.NewDesc("node_agent_requests_ok_total", "Successful proxied requests.", labels, nil),
		fail:        prometheus.NewDesc("node_agent_requests_fail_total", "Failed proxied requests.", labels, nil),
		successRate: prometheus.NewDesc("node_agent_success_rate", "Success rate (0-100) over all requests since start or last reset.", labels, nil),
		avgMs:       prometheus.NewDesc("node_agent_latency_ms_avg", "Rolling-window average latency in milliseconds.", labels, nil),
		tokensTotal: prometheus.NewDesc("node_agent_tokens_total", "Total tokens streamed back to callers.", labels, nil),
		uptime:      prometheus.NewDesc("node_agent_uptime_seconds", "Seconds since the agent process started.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.ok
	ch <- c.fail
	ch <- c.successRate
	ch <- c.avgMs
	ch <- c.tokensTotal
	ch <- c.uptime
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	now := time.Now()
	c.collectOne(ch, "llm", c.coord.LLMStats.Snapshot(now))
	c.collectOne(ch, "render", c.coord.RenderStats.Snapshot(now))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, c.coord.UptimeSeconds())
}

func (c *statsCollector) collectOne(ch chan<- prometheus.Metric, service string, snap stats.Snapshot) {
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(snap.Total), service)
	ch <- prometheus.MustNewConstMetric(c.ok, prometheus.CounterValue, float64(snap.OK), service)
	ch <- prometheus.MustNewConstMetric(c.fail, prometheus.CounterValue, float64(snap.Fail), service)
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, snap.SuccessRate, service)
	ch <- prometheus.MustNewConstMetric(c.avgMs, prometheus.GaugeValue, snap.AvgMs, service)
	ch <- prometheus.MustNewConstMetric(c.tokensTotal, prometheus.CounterValue, float64(snap.TokensTotal), service)
}
