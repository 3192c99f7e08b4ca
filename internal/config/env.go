package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
)

// Environment variable names. The first group is the contract between the
// dispatcher and a launched build task.
const (
	EnvRepositoryURL   = "GIT_REPOSITORY_URL"
	EnvProjectID       = "PROJECT_ID"
	EnvRegion          = "AWS_REGION"
	EnvBucket          = "AWS_S3_BUCKET"
	EnvAccessKeyID     = "AWS_ACCESS_KEY"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvStoreType       = "SITEDEPLOY_STORE_TYPE"
	EnvStoreEndpoint   = "SITEDEPLOY_STORE_ENDPOINT"
	EnvStoreRoot       = "SITEDEPLOY_STORE_ROOT"
	EnvOutputRoot      = "SITEDEPLOY_OUTPUT_ROOT"
	EnvWorkDir         = "SITEDEPLOY_WORK_DIR"

	EnvBuildCommand      = "SITEDEPLOY_BUILD_COMMAND"
	EnvOutputDir         = "SITEDEPLOY_OUTPUT_DIR"
	EnvBuildTimeout      = "SITEDEPLOY_BUILD_TIMEOUT"
	EnvUploadConcurrency = "SITEDEPLOY_UPLOAD_CONCURRENCY"
	EnvSkipClone         = "SITEDEPLOY_SKIP_CLONE"

	EnvClusterARN        = "CLUSTER_ARN"
	EnvTaskDefinitionARN = "TASK_DEFINITION_ARN"
	EnvLauncherType      = "SITEDEPLOY_LAUNCHER"
	EnvRegistryType      = "SITEDEPLOY_REGISTRY"
	EnvProxyHost         = "SITEDEPLOY_PROXY_HOST"
	EnvNATSURL           = "NATS_URL"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvLogLevel          = "SITEDEPLOY_LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// LoadDotEnv loads .env and .env.local when present. Variables already set in
// the process environment are never overridden.
func LoadDotEnv() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("Failed to load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", envPath)
	}
}

// ApplyEnvOverrides copies well-known environment variables onto cfg.
func ApplyEnvOverrides(cfg *Config, lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Store.Region, EnvRegion)
	set(&cfg.Store.Bucket, EnvBucket)
	set(&cfg.Store.AccessKeyID, EnvAccessKeyID)
	set(&cfg.Store.SecretAccessKey, EnvSecretAccessKey)
	set(&cfg.Store.Endpoint, EnvStoreEndpoint)
	set(&cfg.Store.Root, EnvStoreRoot)
	set(&cfg.Store.OutputRoot, EnvOutputRoot)
	set(&cfg.Launcher.ECS.Cluster, EnvClusterARN)
	set(&cfg.Launcher.ECS.TaskDefinition, EnvTaskDefinitionARN)
	set(&cfg.Launcher.NATS.URL, EnvNATSURL)
	set(&cfg.Registry.RedisAddr, EnvRedisAddr)
	set(&cfg.Dispatcher.ProxyHost, EnvProxyHost)

	if v, ok := lookup(EnvStoreType); ok && v != "" {
		cfg.Store.Type = StoreType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvLauncherType); ok && v != "" {
		cfg.Launcher.Type = LauncherType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvRegistryType); ok && v != "" {
		cfg.Registry.Type = RegistryType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Monitoring.Logging.Level = NormalizeLogLevel(v)
	}
}

// WorkerConfig parameterizes one build worker run. It is assembled entirely
// from the environment the Task Launcher injected.
type WorkerConfig struct {
	RepositoryURL string
	ProjectID     string
	WorkDir       string
	Store         StoreConfig
	Build         BuildConfig
}

// FromEnvironment reads the worker parameters through lookup.
func FromEnvironment(lookup LookupFunc) (*WorkerConfig, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	wc := &WorkerConfig{
		RepositoryURL: get(EnvRepositoryURL),
		ProjectID:     get(EnvProjectID),
		WorkDir:       get(EnvWorkDir),
		Store: StoreConfig{
			Type:            StoreType(strings.ToLower(get(EnvStoreType))),
			Bucket:          get(EnvBucket),
			Region:          get(EnvRegion),
			AccessKeyID:     get(EnvAccessKeyID),
			SecretAccessKey: get(EnvSecretAccessKey),
			Endpoint:        get(EnvStoreEndpoint),
			Root:            get(EnvStoreRoot),
			OutputRoot:      get(EnvOutputRoot),
		},
		Build: BuildConfig{
			Command:   get(EnvBuildCommand),
			OutputDir: get(EnvOutputDir),
		},
	}

	if v := get(EnvBuildTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, ferrors.ConfigError("invalid build timeout").
				WithCause(err).WithContext("variable", EnvBuildTimeout).Build()
		}
		wc.Build.Timeout = d
	}
	if v := get(EnvUploadConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, ferrors.ConfigError("invalid upload concurrency").
				WithCause(err).WithContext("variable", EnvUploadConcurrency).Build()
		}
		wc.Build.UploadConcurrency = n
	}
	if v := get(EnvSkipClone); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, ferrors.ConfigError("invalid skip clone flag").
				WithCause(err).WithContext("variable", EnvSkipClone).Build()
		}
		wc.Build.SkipClone = b
	}

	if wc.WorkDir == "" {
		wc.WorkDir = DefaultWorkDir
	}
	applyStoreDefaults(&wc.Store)
	applyBuildDefaults(&wc.Build)

	if err := wc.Validate(); err != nil {
		return nil, err
	}
	return wc, nil
}

// Validate checks that the worker has everything it needs.
func (wc *WorkerConfig) Validate() error {
	if wc.ProjectID == "" {
		return ferrors.ConfigError("project id is required").
			WithContext("variable", EnvProjectID).Build()
	}
	if err := project.Validate(wc.ProjectID); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid project id").
			WithContext("variable", EnvProjectID).Build()
	}
	if wc.RepositoryURL == "" && !wc.Build.SkipClone {
		return ferrors.ConfigError("repository url is required").
			WithContext("variable", EnvRepositoryURL).Build()
	}
	return validateStore(&wc.Store)
}
