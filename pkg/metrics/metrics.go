package metrics

/*
Labels and so on for metrics used in the composer.
*/

const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelSuccess = "success"

	// Labels for validation metrics
	LabelOutcome = "outcome"
	LabelSource  = "source"

	// Labels for chat metrics
	LabelModel = "model"
)
