package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
)

func TestTaskSpec_Environment(t *testing.T) {
	spec := testSpec()
	env := spec.Environment()

	assert.Equal(t, map[string]string{
		"GIT_REPOSITORY_URL":     "https://github.com/example/site.git",
		"PROJECT_ID":             "brave-quiet-otter",
		"AWS_REGION":             "ap-south-1",
		"AWS_S3_BUCKET":          "output-bucket",
		"AWS_ACCESS_KEY":         "AKIA",
		"AWS_SECRET_ACCESS_KEY":  "secret",
		"SITEDEPLOY_STORE_TYPE":  "s3",
		"SITEDEPLOY_OUTPUT_ROOT": "__outputs",
	}, env)
}

func TestTaskSpec_EnvListSorted(t *testing.T) {
	spec := NewTaskSpec("https://example.com/r.git", "p", config.StoreConfig{Type: config.StoreFS, Root: "/srv/artifacts"})
	assert.Equal(t, []string{
		"GIT_REPOSITORY_URL=https://example.com/r.git",
		"PROJECT_ID=p",
		"SITEDEPLOY_STORE_ROOT=/srv/artifacts",
		"SITEDEPLOY_STORE_TYPE=fs",
	}, spec.EnvList())
}
