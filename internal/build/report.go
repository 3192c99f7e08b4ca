package build

import (
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
)

// Report summarizes one worker run.
type Report struct {
	ProjectID string
	Commit    string
	ExitCode  int
	Outcome   metrics.BuildOutcomeLabel
	// Uploaded holds the store keys written, sorted.
	Uploaded []string
	Failed   []UploadFailure
	// Skipped lists output entries that are neither files nor directories,
	// relative to the output directory.
	Skipped  []string
	Bytes    int64
	Duration time.Duration
}

// UploadFailure is one artifact that could not be stored.
type UploadFailure struct {
	Key string
	Err error
}

// FailedKeys returns the keys of all failed uploads.
func (r *Report) FailedKeys() []string {
	keys := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		keys = append(keys, f.Key)
	}
	return keys
}

// Succeeded reports a fully successful run.
func (r *Report) Succeeded() bool {
	return r.Outcome == metrics.BuildSucceeded
}
