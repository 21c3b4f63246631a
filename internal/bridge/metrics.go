package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	initDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kerasbridge",
			Subsystem: "bridge",
			Name:      "init_duration_seconds",
			Help:      "Time spent bringing up the Python runtime",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	initTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kerasbridge",
			Subsystem: "bridge",
			Name:      "init_total",
			Help:      "Runtime initializations by result and failed stage",
		},
		[]string{"result", "stage"},
	)

	importTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kerasbridge",
			Subsystem: "bridge",
			Name:      "module_imports_total",
			Help:      "Module imports by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(initDuration, initTotal, importTotal)
}
