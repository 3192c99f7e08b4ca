package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_SITEDEPLOY_BUCKET", "sites-bucket")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
store:
  type: s3
  bucket: ${TEST_SITEDEPLOY_BUCKET}
  region: ap-south-1
launcher:
  type: process
router:
  upstream_timeout: 5s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sites-bucket", cfg.Store.Bucket)
	assert.Equal(t, DefaultOutputRoot, cfg.Store.OutputRoot)
	assert.Equal(t, "https://sites-bucket.s3.ap-south-1.amazonaws.com/__outputs", cfg.Router.StoreBaseURL)
	assert.Equal(t, 5*time.Second, cfg.Router.UpstreamTimeout)
	assert.Equal(t, DefaultAPIAddr, cfg.HTTP.APIAddr)
	assert.Equal(t, DefaultProxyAddr, cfg.HTTP.ProxyAddr)
	assert.Equal(t, DefaultProxyHost, cfg.Dispatcher.ProxyHost)
	assert.Equal(t, DefaultBuildCommand, cfg.Build.Command)
	assert.Equal(t, RegistryMemory, cfg.Registry.Type)
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_InvalidLauncher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: {type: fs, root: ./artifacts}
launcher: {type: lambda}
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInit_WritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitedeploy.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	t.Setenv("CLUSTER_ARN", "arn:aws:ecs:eu-west-1:1:cluster/sites")
	t.Setenv("TASK_DEFINITION_ARN", "arn:aws:ecs:eu-west-1:1:task-definition/builder:1")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, LauncherECS, cfg.Launcher.Type)
	assert.Equal(t, "FARGATE", cfg.Launcher.ECS.LaunchType)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := &Config{}
	ApplyEnvOverrides(cfg, lookupFrom(map[string]string{
		EnvRegion:          "eu-north-1",
		EnvBucket:          "b",
		EnvAccessKeyID:     "AKIA",
		EnvSecretAccessKey: "secret",
		EnvLauncherType:    "NATS",
		EnvRegistryType:    "redis",
		EnvLogLevel:        "DEBUG",
		EnvProxyHost:       "sites.example.com",
	}))

	assert.Equal(t, "eu-north-1", cfg.Store.Region)
	assert.Equal(t, "b", cfg.Store.Bucket)
	assert.Equal(t, "AKIA", cfg.Store.AccessKeyID)
	assert.Equal(t, LauncherNATS, cfg.Launcher.Type)
	assert.Equal(t, RegistryRedis, cfg.Registry.Type)
	assert.Equal(t, LogLevelDebug, cfg.Monitoring.Logging.Level)
	assert.Equal(t, "sites.example.com", cfg.Dispatcher.ProxyHost)
}

func TestNamespaceBaseURL(t *testing.T) {
	tests := []struct {
		name  string
		store StoreConfig
		want  string
	}{
		{"s3 virtual host", StoreConfig{Type: StoreS3, Bucket: "b", Region: "r", OutputRoot: "__outputs"}, "https://b.s3.r.amazonaws.com/__outputs"},
		{"s3 custom endpoint", StoreConfig{Type: StoreS3, Bucket: "b", Endpoint: "http://minio:9000/", OutputRoot: "/__outputs/"}, "http://minio:9000/b/__outputs"},
		{"fs", StoreConfig{Type: StoreFS, PublicURL: "http://localhost:9100", OutputRoot: "__outputs"}, "http://localhost:9100/__outputs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.store.NamespaceBaseURL())
		})
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Store:    StoreConfig{Type: StoreFS, Root: "artifacts"},
			Launcher: LauncherConfig{Type: LauncherProcess},
		}
		ApplyDefaults(cfg)
		return cfg
	}

	require.NoError(t, ValidateConfig(base()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"proxy host with path", func(c *Config) { c.Dispatcher.ProxyHost = "localhost/x" }},
		{"bad scheme", func(c *Config) { c.Dispatcher.URLScheme = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Store.Type = StoreS3; c.Store.Region = "r" }},
		{"half credentials", func(c *Config) {
			c.Store.Type = StoreS3
			c.Store.Bucket, c.Store.Region, c.Store.AccessKeyID = "b", "r", "AKIA"
		}},
		{"escaping output root", func(c *Config) { c.Store.OutputRoot = "../x" }},
		{"relative store base", func(c *Config) { c.Router.StoreBaseURL = "/outputs" }},
		{"ecs without cluster", func(c *Config) { c.Launcher.Type = LauncherECS }},
		{"unknown registry", func(c *Config) { c.Registry.Type = "etcd" }},
		{"empty build command", func(c *Config) { c.Build.Command = "  " }},
		{"escaping output dir", func(c *Config) { c.Build.OutputDir = "../dist" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestValidateConfig_OnlyNamedSections(t *testing.T) {
	cfg := &Config{
		Store:  StoreConfig{Type: StoreFS, Root: "/srv/artifacts"},
		Router: RouterConfig{StoreBaseURL: "http://127.0.0.1:9100/__outputs"},
	}
	ApplyDefaults(cfg)
	require.Equal(t, LauncherECS, cfg.Launcher.Type)

	assert.NoError(t, ValidateConfig(cfg, SectionRouter))
	assert.NoError(t, ValidateConfig(cfg, SectionStore, SectionBuild, SectionAgent))

	err := ValidateConfig(cfg, SectionDispatcher, SectionLauncher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launcher.ecs")
	assert.Error(t, ValidateConfig(cfg), "no sections checks everything")

	cfg.Agent.Concurrency = 0
	assert.Error(t, ValidateConfig(cfg, SectionAgent))

	err = ValidateConfig(cfg, Section("bogus"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInternal))
}

func TestFromEnvironment(t *testing.T) {
	wc, err := FromEnvironment(lookupFrom(map[string]string{
		EnvRepositoryURL:     "https://github.com/example/site.git",
		EnvProjectID:         "brave-quiet-otter",
		EnvRegion:            "ap-south-1",
		EnvBucket:            "output-bucket",
		EnvAccessKeyID:       "AKIA",
		EnvSecretAccessKey:   "secret",
		EnvBuildTimeout:      "90s",
		EnvUploadConcurrency: "8",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/site.git", wc.RepositoryURL)
	assert.Equal(t, "brave-quiet-otter", wc.ProjectID)
	assert.Equal(t, DefaultWorkDir, wc.WorkDir)
	assert.Equal(t, StoreS3, wc.Store.Type)
	assert.Equal(t, DefaultOutputRoot, wc.Store.OutputRoot)
	assert.Equal(t, 90*time.Second, wc.Build.Timeout)
	assert.Equal(t, 8, wc.Build.UploadConcurrency)
	assert.Equal(t, DefaultOutputDir, wc.Build.OutputDir)
}

func TestFromEnvironment_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing project", map[string]string{EnvRepositoryURL: "u", EnvBucket: "b", EnvRegion: "r"}},
		{"missing repository", map[string]string{EnvProjectID: "p", EnvBucket: "b", EnvRegion: "r"}},
		{"bad timeout", map[string]string{EnvProjectID: "p", EnvRepositoryURL: "u", EnvBuildTimeout: "soon"}},
		{"bad skip clone", map[string]string{EnvProjectID: "p", EnvSkipClone: "maybe"}},
		{"missing bucket", map[string]string{EnvProjectID: "p", EnvRepositoryURL: "u", EnvRegion: "r"}},
		{"traversing project id", map[string]string{EnvProjectID: "../x", EnvRepositoryURL: "u", EnvBucket: "b", EnvRegion: "r"}},
		{"uppercase project id", map[string]string{EnvProjectID: "Brave", EnvSkipClone: "true", EnvStoreType: "fs", EnvStoreRoot: "/tmp/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnvironment(lookupFrom(tt.env))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestFromEnvironment_SkipCloneWithFSStore(t *testing.T) {
	wc, err := FromEnvironment(lookupFrom(map[string]string{
		EnvProjectID: "p",
		EnvSkipClone: "true",
		EnvStoreType: "fs",
		EnvStoreRoot: "/tmp/artifacts",
		EnvWorkDir:   "/tmp/ws",
	}))
	require.NoError(t, err)
	assert.True(t, wc.Build.SkipClone)
	assert.Equal(t, StoreFS, wc.Store.Type)
	assert.Equal(t, "/tmp/ws", wc.WorkDir)
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(".env", []byte("SITEDEPLOY_TEST_A=from-file\nSITEDEPLOY_TEST_B=\"quoted\"\n"), 0o600))
	t.Setenv("SITEDEPLOY_TEST_A", "from-process")
	t.Setenv("SITEDEPLOY_TEST_B", "")
	require.NoError(t, os.Unsetenv("SITEDEPLOY_TEST_B"))

	LoadDotEnv()

	assert.Equal(t, "from-process", os.Getenv("SITEDEPLOY_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("SITEDEPLOY_TEST_B"))
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("WARNING"))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat(" json "))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("xml"))

	var buf testWriter
	logger := LoggingConfig{Level: LogLevelError, Format: LogFormatJSON}.NewLogger(&buf, false)
	logger.Info("hidden")
	logger.Error("shown")
	assert.NotContains(t, string(buf), "hidden")
	assert.Contains(t, string(buf), `"msg":"shown"`)
}

type testWriter []byte

func (w *testWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
