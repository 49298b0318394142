package chat

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/rgcomposer/pkg/metrics"
)

var (
	askDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "chat",
		Name:      "request_duration_seconds",
		Help:      "Duration of calls to the chat API, in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{metrics.LabelModel, metrics.LabelSuccess})
)
