package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/rgcomposer/pkg/metrics"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

const (
	sourceAssemble = "assemble"
	sourceValidate = "validate"
	sourceApply    = "apply"
	sourcePreview  = "preview"

	outcomeValid   = "valid"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

var (
	validations = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "daemon",
		Name:      "validations_total",
		Help:      "Count of manifest validations, by outcome and by what asked for them.",
	}, []string{metrics.LabelOutcome, metrics.LabelSource})
)

func observeValidation(source string, res schema.Result, err error, enabled bool) {
	outcome := outcomeValid
	switch {
	case !enabled:
		outcome = outcomeSkipped
	case err != nil:
		outcome = outcomeError
	case !res.Valid:
		outcome = outcomeInvalid
	}
	validations.With(metrics.LabelOutcome, outcome, metrics.LabelSource, source).Add(1)
}
