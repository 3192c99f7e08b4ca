package metrics

import "time"

// ResultLabel enumerates per-operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// DispatchOutcomeLabel enumerates dispatcher request outcomes.
type DispatchOutcomeLabel string

const (
	DispatchQueued       DispatchOutcomeLabel = "queued"
	DispatchInvalid      DispatchOutcomeLabel = "invalid"
	DispatchLaunchFailed DispatchOutcomeLabel = "launch_failed"
	DispatchInternal     DispatchOutcomeLabel = "internal_error"
)

// BuildOutcomeLabel enumerates final build worker outcomes.
type BuildOutcomeLabel string

const (
	BuildSucceeded     BuildOutcomeLabel = "succeeded"
	BuildFailed        BuildOutcomeLabel = "build_failed"
	BuildUploadPartial BuildOutcomeLabel = "upload_partial"
	BuildCheckoutError BuildOutcomeLabel = "checkout_failed"
)

// Recorder defines the metrics surface used across sitedeploy.
type Recorder interface {
	IncDispatch(outcome DispatchOutcomeLabel)
	ObserveLaunchDuration(launcher string, d time.Duration, success bool)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncUpload(result ResultLabel, bytes int64)
	ObserveProxyRequest(status int, d time.Duration)
	IncRoutingError(reason string)
	IncAgentTask(result ResultLabel)
	IncWorkspacesSwept(n int)
}

// NoopRecorder is the default Recorder.
type NoopRecorder struct{}

func (NoopRecorder) IncDispatch(DispatchOutcomeLabel)                  {}
func (NoopRecorder) ObserveLaunchDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                 {}
func (NoopRecorder) IncUpload(ResultLabel, int64)                      {}
func (NoopRecorder) ObserveProxyRequest(int, time.Duration)            {}
func (NoopRecorder) IncRoutingError(string)                            {}
func (NoopRecorder) IncAgentTask(ResultLabel)                          {}
func (NoopRecorder) IncWorkspacesSwept(int)                            {}

// ResultFor maps an error to a ResultLabel.
func ResultFor(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
