// Package config loads the sitedeploy configuration.
//
// Configuration is read once at process start from a YAML file (with ${VAR}
// expansion) and optional .env files, then passed by value into component
// constructors. Components never consult the environment themselves; the
// build worker receives its parameters through FromEnvironment, called once in main.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sitedeploy configuration.
type Config struct {
	Version    string           `yaml:"version"`
	HTTP       HTTPConfig       `yaml:"http"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Router     RouterConfig     `yaml:"router"`
	Launcher   LauncherConfig   `yaml:"launcher"`
	Store      StoreConfig      `yaml:"store"`
	Registry   RegistryConfig   `yaml:"registry"`
	Build      BuildConfig      `yaml:"build"`
	Agent      AgentConfig      `yaml:"agent"`
	Janitor    JanitorConfig    `yaml:"janitor"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// HTTPConfig holds the listen addresses of every HTTP surface.
type HTTPConfig struct {
	APIAddr   string `yaml:"api_addr"`   // Dispatcher
	ProxyAddr string `yaml:"proxy_addr"` // Artifact Router
	AdminAddr string `yaml:"admin_addr"` // Health and metrics
	StoreAddr string `yaml:"store_addr"` // Local artifact store (fs store only)
}

// DispatcherConfig configures the deployment dispatcher.
type DispatcherConfig struct {
	ProxyHost    string `yaml:"proxy_host"` // Host (and port) the router is reachable on
	URLScheme    string `yaml:"url_scheme"`
	SlugAttempts int    `yaml:"slug_attempts"` // Draws allowed before giving up on a free identifier
}

// RouterConfig configures the artifact router.
type RouterConfig struct {
	// StoreBaseURL is the public base of the artifact namespace, including the output
	// root. Derived from the store section when empty.
	StoreBaseURL    string        `yaml:"store_base_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// LauncherType selects the Task Launcher implementation.
type LauncherType string

const (
	LauncherECS     LauncherType = "ecs"
	LauncherNATS    LauncherType = "nats"
	LauncherProcess LauncherType = "process"
)

// LauncherConfig configures the Task Launcher.
type LauncherConfig struct {
	Type    LauncherType  `yaml:"type"`
	Timeout time.Duration `yaml:"timeout"` // Bound on a single submission
	ECS     ECSConfig     `yaml:"ecs"`
	NATS    NATSConfig    `yaml:"nats"`
	Process ProcessConfig `yaml:"process"`
}

// ECSConfig holds the fixed task template used for every deployment.
type ECSConfig struct {
	Cluster        string   `yaml:"cluster"`
	TaskDefinition string   `yaml:"task_definition"`
	LaunchType     string   `yaml:"launch_type"`
	ContainerName  string   `yaml:"container_name"`
	Subnets        []string `yaml:"subnets"`
	SecurityGroups []string `yaml:"security_groups"`
	AssignPublicIP string   `yaml:"assign_public_ip"` // ENABLED or DISABLED
}

// NATSConfig configures the queue-based launcher and the agent consuming it.
type NATSConfig struct {
	URL          string `yaml:"url"`
	Stream       string `yaml:"stream"`
	Subject      string `yaml:"subject"`
	StatusBucket string `yaml:"status_bucket"`
}

// ProcessConfig configures local child-process execution.
type ProcessConfig struct {
	Binary        string `yaml:"binary"` // Defaults to the running executable
	WorkspaceRoot string `yaml:"workspace_root"`
}

// StoreType selects the Artifact Store implementation.
type StoreType string

const (
	StoreS3 StoreType = "s3"
	StoreFS StoreType = "fs"
)

// StoreConfig configures the Artifact Store. It is also the store section carried
// in every Deployment Task Spec.
type StoreConfig struct {
	Type            StoreType `yaml:"type" json:"type,omitempty"`
	Bucket          string    `yaml:"bucket" json:"bucket,omitempty"`
	Region          string    `yaml:"region" json:"region,omitempty"`
	AccessKeyID     string    `yaml:"access_key_id" json:"access_key_id,omitempty"`
	SecretAccessKey string    `yaml:"secret_access_key" json:"secret_access_key,omitempty"`
	Endpoint        string    `yaml:"endpoint" json:"endpoint,omitempty"`       // Custom S3 endpoint (MinIO, LocalStack)
	Root            string    `yaml:"root" json:"root,omitempty"`               // Directory backing the fs store
	PublicURL       string    `yaml:"public_url" json:"public_url,omitempty"`   // Where the fs store is served
	OutputRoot      string    `yaml:"output_root" json:"output_root,omitempty"` // Shared key prefix for all artifacts
}

// RegistryType selects the identifier registry backend.
type RegistryType string

const (
	RegistryMemory RegistryType = "memory"
	RegistrySQLite RegistryType = "sqlite"
	RegistryRedis  RegistryType = "redis"
)

// RegistryConfig configures identifier reservation.
type RegistryConfig struct {
	Type      RegistryType  `yaml:"type"`
	Path      string        `yaml:"path"`       // SQLite database file
	RedisAddr string        `yaml:"redis_addr"` // host:port
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"` // Zero keeps reservations forever
}

// BuildConfig configures the build worker.
type BuildConfig struct {
	Command           string        `yaml:"command"`
	OutputDir         string        `yaml:"output_dir"` // Relative to the checkout
	Timeout           time.Duration `yaml:"timeout"`
	UploadConcurrency int           `yaml:"upload_concurrency"`
	SkipClone         bool          `yaml:"skip_clone"`
	CloneDepth        int           `yaml:"clone_depth"`
}

// AgentConfig configures the NATS build agent.
type AgentConfig struct {
	Durable     string        `yaml:"durable"`
	Concurrency int           `yaml:"concurrency"`
	AckWait     time.Duration `yaml:"ack_wait"`
}

// JanitorConfig configures the workspace sweeper.
type JanitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// MonitoringConfig configures logging and metrics.
type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint on the admin listener.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// Load reads a configuration file with Read and validates every section.
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads a configuration file, expands environment variables, and applies
// environment overrides and defaults. An empty path yields the default
// configuration. Callers validate the sections they use with ValidateConfig.
func Read(configPath string) (*Config, error) {
	LoadDotEnv()

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("configuration file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	return cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := &Config{Version: "1"}
	example.Store.Bucket = "my-sites-bucket"
	example.Store.Region = "eu-west-1"
	example.Store.AccessKeyID = "${AWS_ACCESS_KEY}"
	example.Store.SecretAccessKey = "${AWS_SECRET_ACCESS_KEY}"
	example.Launcher.ECS.Cluster = "${CLUSTER_ARN}"
	example.Launcher.ECS.TaskDefinition = "${TASK_DEFINITION_ARN}"
	example.Launcher.ECS.Subnets = []string{"subnet-00000000"}
	example.Launcher.ECS.SecurityGroups = []string{"sg-00000000"}
	ApplyDefaults(example)

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
