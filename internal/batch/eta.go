package batch

// DefaultSecondsPerItem is the observed wall time of one full grading
const DefaultSecondsPerItem = 60

// DefaultParallelism is the worker count used when none is configured
const DefaultParallelism = 4

// EstimateETASeconds counts the remaining waves of parallel work and
// multiplies by the per-item time:
//
//	ceil(max(0, total-completed) / max(1, parallelism)) * secondsPerItem
func EstimateETASeconds(total, completed, parallelism, secondsPerItem int) int {
	remaining := total - completed
	if remaining < 0 {
		remaining = 0
	}
	if parallelism < 1 {
		parallelism = 1
	}
	waves := (remaining + parallelism - 1) / parallelism
	return waves * secondsPerItem
}
