// Package prometheus bridges the go-metrics registry to a Prometheus
// /metrics HTTP endpoint, the same wiring klaytn's cmd/kcn main.go performs
// at startup via prometheusmetrics.NewPrometheusProvider plus
// promhttp.Handler — generalized here into a small reusable exporter each
// aurex binary starts once.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/aurex-chain/aurex/log"
)

var logger = log.NewModuleLogger(log.Common)

// Exporter periodically copies go-metrics counters/gauges into a Prometheus
// registry and serves them over HTTP.
type Exporter struct {
	addr     string
	reg      *prometheus.Registry
	gauges   map[string]prometheus.Gauge
	source   gometrics.Registry
}

// NewExporter builds an Exporter that will read from source and serve on
// addr (e.g. ":9090") once Start is called.
func NewExporter(addr string, source gometrics.Registry) *Exporter {
	return &Exporter{
		addr:   addr,
		reg:    prometheus.NewRegistry(),
		gauges: make(map[string]prometheus.Gauge),
		source: source,
	}
}

// Start launches the HTTP /metrics server in a background goroutine. It does
// not block; errors from ListenAndServe are logged, not returned, matching
// the teacher's fire-and-forget exporter startup in app.Before.
func (e *Exporter) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(e.addr, mux); err != nil {
			logger.Error("prometheus exporter stopped", "addr", e.addr, "err", err)
		}
	}()
	logger.Info("prometheus exporter started", "addr", e.addr)
}

// Collect snapshots every counter currently registered on the source
// registry into the Prometheus registry. Call it on a ticker from the
// binary's main loop (cmd/* CollectProcessMetrics-style).
func (e *Exporter) Collect() {
	e.source.Each(func(name string, i interface{}) {
		switch metric := i.(type) {
		case gometrics.Counter:
			e.gaugeFor(name).Set(float64(metric.Count()))
		case gometrics.Gauge:
			e.gaugeFor(name).Set(float64(metric.Value()))
		}
	})
}

func (e *Exporter) gaugeFor(name string) prometheus.Gauge {
	if g, ok := e.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: sanitize(name),
		Help: "aurex metric " + name,
	})
	e.reg.MustRegister(g)
	e.gauges[name] = g
	return g
}

func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out[i] = c
		} else {
			out[i] = '_'
		}
	}
	return "aurex_" + string(out)
}
