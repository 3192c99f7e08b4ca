package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults mirror the original deployment: dispatcher on 9000, router on 8000,
// artifacts under __outputs, and an npm install-then-build step producing dist.
const (
	DefaultAPIAddr           = ":9000"
	DefaultProxyAddr         = ":8000"
	DefaultAdminAddr         = ":9090"
	DefaultStoreAddr         = ":9100"
	DefaultProxyHost         = "localhost:8000"
	DefaultURLScheme         = "http"
	DefaultOutputRoot        = "__outputs"
	DefaultBuildCommand      = "npm install && npm run build"
	DefaultOutputDir         = "dist"
	DefaultWorkDir           = "output"
	DefaultLaunchTimeout     = 10 * time.Second
	DefaultUpstreamTimeout   = 30 * time.Second
	DefaultBuildTimeout      = 30 * time.Minute
	DefaultUploadConcurrency = 4
	DefaultSlugAttempts      = 5
)

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	applyHTTPDefaults(&cfg.HTTP)

	d := &cfg.Dispatcher
	if d.ProxyHost == "" {
		d.ProxyHost = DefaultProxyHost
	}
	if d.URLScheme == "" {
		d.URLScheme = DefaultURLScheme
	}
	if d.SlugAttempts <= 0 {
		d.SlugAttempts = DefaultSlugAttempts
	}

	applyStoreDefaults(&cfg.Store)
	applyLauncherDefaults(&cfg.Launcher)
	applyBuildDefaults(&cfg.Build)

	if cfg.Router.StoreBaseURL == "" {
		cfg.Router.StoreBaseURL = cfg.Store.NamespaceBaseURL()
	}
	if cfg.Router.UpstreamTimeout <= 0 {
		cfg.Router.UpstreamTimeout = DefaultUpstreamTimeout
	}

	r := &cfg.Registry
	if r.Type == "" {
		r.Type = RegistryMemory
	}
	if r.Path == "" {
		r.Path = "sitedeploy.db"
	}
	if r.RedisAddr == "" {
		r.RedisAddr = "localhost:6379"
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "sitedeploy:project:"
	}

	a := &cfg.Agent
	if a.Durable == "" {
		a.Durable = "sitedeploy-agent"
	}
	if a.Concurrency <= 0 {
		a.Concurrency = 1
	}
	if a.AckWait <= 0 {
		a.AckWait = cfg.Build.Timeout + 5*time.Minute
	}

	j := &cfg.Janitor
	if j.Interval <= 0 {
		j.Interval = 10 * time.Minute
	}
	if j.MaxAge <= 0 {
		j.MaxAge = 24 * time.Hour
	}

	m := &cfg.Monitoring
	m.Logging.Level = NormalizeLogLevel(string(m.Logging.Level))
	m.Logging.Format = NormalizeLogFormat(string(m.Logging.Format))
	if m.Metrics.Path == "" {
		m.Metrics.Path = "/metrics"
	}
}

func applyHTTPDefaults(h *HTTPConfig) {
	if h.APIAddr == "" {
		h.APIAddr = DefaultAPIAddr
	}
	if h.ProxyAddr == "" {
		h.ProxyAddr = DefaultProxyAddr
	}
	if h.AdminAddr == "" {
		h.AdminAddr = DefaultAdminAddr
	}
	if h.StoreAddr == "" {
		h.StoreAddr = DefaultStoreAddr
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Type == "" {
		s.Type = StoreS3
	}
	if s.OutputRoot == "" {
		s.OutputRoot = DefaultOutputRoot
	}
	s.OutputRoot = strings.Trim(s.OutputRoot, "/")
	if s.Root == "" {
		s.Root = "artifacts"
	}
	if s.PublicURL == "" {
		s.PublicURL = "http://localhost" + DefaultStoreAddr
	}
}

func applyLauncherDefaults(l *LauncherConfig) {
	if l.Type == "" {
		l.Type = LauncherECS
	}
	if l.Timeout <= 0 {
		l.Timeout = DefaultLaunchTimeout
	}
	if l.ECS.LaunchType == "" {
		l.ECS.LaunchType = "FARGATE"
	}
	if l.ECS.ContainerName == "" {
		l.ECS.ContainerName = "builder-image"
	}
	if l.ECS.AssignPublicIP == "" {
		l.ECS.AssignPublicIP = "ENABLED"
	}
	if l.NATS.URL == "" {
		l.NATS.URL = "nats://127.0.0.1:4222"
	}
	if l.NATS.Stream == "" {
		l.NATS.Stream = "SITEDEPLOY_TASKS"
	}
	if l.NATS.Subject == "" {
		l.NATS.Subject = "sitedeploy.tasks"
	}
	if l.NATS.StatusBucket == "" {
		l.NATS.StatusBucket = "sitedeploy_status"
	}
	if l.Process.WorkspaceRoot == "" {
		l.Process.WorkspaceRoot = os.TempDir()
	}
}

func applyBuildDefaults(b *BuildConfig) {
	if b.Command == "" {
		b.Command = DefaultBuildCommand
	}
	if b.OutputDir == "" {
		b.OutputDir = DefaultOutputDir
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultBuildTimeout
	}
	if b.UploadConcurrency <= 0 {
		b.UploadConcurrency = DefaultUploadConcurrency
	}
	if b.CloneDepth < 0 {
		b.CloneDepth = 0
	}
	if b.CloneDepth == 0 {
		b.CloneDepth = 1
	}
}

// NamespaceBaseURL returns the public HTTP base under which every project
// namespace lives: <base>/<outputRoot>.
func (s StoreConfig) NamespaceBaseURL() string {
	root := strings.Trim(s.OutputRoot, "/")
	switch s.Type {
	case StoreFS:
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.PublicURL, "/"), root)
	default:
		if s.Endpoint != "" {
			return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.Endpoint, "/"), s.Bucket, root)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, root)
	}
}
