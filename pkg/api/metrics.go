package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	comparisons    *prometheus.CounterVec
	baselinesSaved prometheus.Counter
	baselinesDel   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		comparisons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbbench",
				Name:      "comparisons_total",
				Help:      "Baseline comparisons served, by overall status.",
			},
			[]string{"status"},
		),
		baselinesSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dbbench",
				Name:      "baselines_saved_total",
				Help:      "Baselines stored through the API.",
			},
		),
		baselinesDel: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dbbench",
				Name:      "baselines_deleted_total",
				Help:      "Baselines deleted through the API.",
			},
		),
	}
}
