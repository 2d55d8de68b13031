package metrics

/*
Labels and so on for metrics used in caravel.
*/

const (
	LabelEnvironment = "environment"
	LabelMethod      = "method"
	LabelSuccess     = "success"

	// Labels for deployment metrics
	LabelCause  = "cause"
	LabelResult = "result"
	LabelStage  = "stage"
)
