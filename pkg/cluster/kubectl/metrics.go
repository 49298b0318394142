package kubectl

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/rgcomposer/pkg/metrics"
)

var (
	applyDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "kubectl",
		Name:      "apply_duration_seconds",
		Help:      "Duration of kubectl apply runs, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelSuccess})
)
