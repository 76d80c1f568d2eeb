package metrics

import "time"

// ResultLabel enumerates step result categories for counters.
type ResultLabel string

const (
	ResultSuccess    ResultLabel = "success"
	ResultFailed     ResultLabel = "failed"
	ResultSuperseded ResultLabel = "superseded"
	ResultCanceled   ResultLabel = "canceled"
)

// Recorder defines observability hooks for builds and the watch loop.
// Implementations must be safe for concurrent use; builds run on their own goroutines.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome ResultLabel)
	IncRebuildTrigger(source string) // source: change|schedule
	IncRefresh()
	SetLiveReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) IncStepResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)        {}
func (NoopRecorder) IncBuildOutcome(ResultLabel)               {}
func (NoopRecorder) IncRebuildTrigger(string)                  {}
func (NoopRecorder) IncRefresh()                               {}
func (NoopRecorder) SetLiveReloadClients(int)                  {}
