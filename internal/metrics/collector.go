// Package metrics collects sync-run and HTTP counters on a Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rulesync"

// Collector owns a private registry so tests and the textfile export see
// only rulesync series.
type Collector struct {
	registry *prometheus.Registry

	filesWritten   *prometheus.CounterVec
	filesUnchanged *prometheus.CounterVec
	filesRemoved   *prometheus.CounterVec
	sourcesRead    prometheus.Counter
	externalFailed *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	appErrors      *prometheus.CounterVec
	lastRunSuccess prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Generated files written because their content changed.",
		}, []string{"target"}),
		filesUnchanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_unchanged_total",
			Help:      "Generated files left untouched because their content was identical.",
		}, []string{"target"}),
		filesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_removed_total",
			Help:      "Stale generated files removed.",
		}, []string{"target"}),
		sourcesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_read_total",
			Help:      "Source rule lists read.",
		}),
		externalFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_fetch_failures_total",
			Help:      "External rule lists skipped because the fetch failed.",
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"pattern", "status"}),
		appErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_errors_total",
			Help:      "Application errors by stage and code.",
		}, []string{"stage", "code"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last sync run completed, 0 otherwise.",
		}),
	}
	c.registry.MustRegister(
		c.filesWritten,
		c.filesUnchanged,
		c.filesRemoved,
		c.sourcesRead,
		c.externalFailed,
		c.httpRequests,
		c.appErrors,
		c.lastRunSuccess,
	)
	return c
}

// IncWritten counts a written output file.
func (c *Collector) IncWritten(target string) { c.filesWritten.WithLabelValues(target).Inc() }

// IncUnchanged counts an output file that already had the same bytes.
func (c *Collector) IncUnchanged(target string) { c.filesUnchanged.WithLabelValues(target).Inc() }

// IncRemoved counts a removed stale output.
func (c *Collector) IncRemoved(target string) { c.filesRemoved.WithLabelValues(target).Inc() }

func (c *Collector) IncSourceRead() { c.sourcesRead.Inc() }

func (c *Collector) IncExternalFailure(provider string) {
	c.externalFailed.WithLabelValues(provider).Inc()
}

func (c *Collector) IncRequest(pattern string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	if pattern == "" {
		pattern = "(unknown)"
	}
	c.httpRequests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
}

func (c *Collector) IncAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	c.appErrors.WithLabelValues(stage, code).Inc()
}

func (c *Collector) SetRunSuccess(ok bool) {
	if ok {
		c.lastRunSuccess.Set(1)
		return
	}
	c.lastRunSuccess.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for node_exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }
