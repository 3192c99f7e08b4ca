package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncDispatch(DispatchQueued)
	r.ObserveLaunchDuration("ecs", time.Second, true)
	r.ObserveBuildDuration(time.Minute)
	r.IncBuildOutcome(BuildSucceeded)
	r.IncUpload(ResultSuccess, 10)
	r.ObserveProxyRequest(200, time.Millisecond)
	r.IncRoutingError("malformed_host")
	r.IncAgentTask(ResultFailed)
	r.IncWorkspacesSwept(3)
}

func TestResultFor(t *testing.T) {
	if ResultFor(nil) != ResultSuccess {
		t.Fatal("nil error should map to success")
	}
	if ResultFor(errors.New("x")) != ResultFailed {
		t.Fatal("error should map to failed")
	}
}
