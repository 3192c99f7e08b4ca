// Package launcher starts isolated build tasks.
//
// A Launcher accepts a TaskSpec and starts exactly one isolated execution unit
// for it, returning as soon as the unit has been accepted. The returned Handle
// lets a caller optionally await the outcome; the dispatcher never does.
package launcher

import (
	"context"
	"maps"
	"slices"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
)

// TaskSpec is the immutable description of one deployment task. Its fields are
// delivered to the build worker as environment overrides.
type TaskSpec struct {
	RepositoryURL string             `json:"repository_url"`
	ProjectID     string             `json:"project_id"`
	Store         config.StoreConfig `json:"store"`
}

// NewTaskSpec assembles a spec from request data and store configuration.
func NewTaskSpec(repositoryURL, projectID string, store config.StoreConfig) TaskSpec {
	return TaskSpec{RepositoryURL: repositoryURL, ProjectID: projectID, Store: store}
}

// Environment returns the overrides handed to the task. Empty values are omitted.
func (s TaskSpec) Environment() map[string]string {
	env := map[string]string{
		config.EnvRepositoryURL:   s.RepositoryURL,
		config.EnvProjectID:       s.ProjectID,
		config.EnvRegion:          s.Store.Region,
		config.EnvBucket:          s.Store.Bucket,
		config.EnvAccessKeyID:     s.Store.AccessKeyID,
		config.EnvSecretAccessKey: s.Store.SecretAccessKey,
		config.EnvStoreType:       string(s.Store.Type),
		config.EnvStoreEndpoint:   s.Store.Endpoint,
		config.EnvStoreRoot:       s.Store.Root,
		config.EnvOutputRoot:      s.Store.OutputRoot,
	}
	maps.DeleteFunc(env, func(_, v string) bool { return v == "" })
	return env
}

// EnvList renders Environment as sorted KEY=VALUE pairs.
func (s TaskSpec) EnvList() []string {
	env := s.Environment()
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

// Launcher starts one isolated unit per call.
type Launcher interface {
	Launch(ctx context.Context, spec TaskSpec) (Handle, error)
	Name() string
}

// Handle refers to a launched unit. Wait blocks until the unit terminates and
// returns nil only when the build succeeded.
type Handle interface {
	ID() string
	Provider() string
	Wait(ctx context.Context) error
}
