package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/withgradle/internal/version"
)

// NewRegistry returns a registry carrying the Go runtime and process
// collectors plus a withgradle_build_info gauge for the running binary.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace:   "withgradle",
			Name:        "build_info",
			Help:        "Version of the running withgradle binary",
			ConstLabels: prom.Labels{"version": version.Version, "commit": version.GitCommit},
		}, func() float64 { return 1 }),
	)
	return reg
}

// HTTPHandler serves the metrics gathered by reg in the OpenMetrics format
// when the scraper asks for it. A nil reg serves the default registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
