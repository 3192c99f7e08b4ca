package config

import (
	"net/url"
	"strings"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// Section names a configuration block. Each command validates only the
// sections it reads.
type Section string

const (
	SectionDispatcher Section = "dispatcher"
	SectionStore      Section = "store"
	SectionRouter     Section = "router"
	SectionLauncher   Section = "launcher"
	SectionRegistry   Section = "registry"
	SectionBuild      Section = "build"
	SectionAgent      Section = "agent"
)

// AllSections lists every section in dependency order.
var AllSections = []Section{
	SectionDispatcher,
	SectionStore,
	SectionRouter,
	SectionLauncher,
	SectionRegistry,
	SectionBuild,
	SectionAgent,
}

var sectionValidators = map[Section]func(*Config) error{
	SectionDispatcher: validateDispatcher,
	SectionStore:      func(c *Config) error { return validateStore(&c.Store) },
	SectionRouter:     validateRouter,
	SectionLauncher:   validateLauncher,
	SectionRegistry:   validateRegistry,
	SectionBuild:      validateBuild,
	SectionAgent:      validateAgent,
}

// ValidateConfig checks the named sections in order and returns the first
// failure. Without sections the whole configuration is checked.
func ValidateConfig(cfg *Config, sections ...Section) error {
	if len(sections) == 0 {
		sections = AllSections
	}
	for _, s := range sections {
		v, ok := sectionValidators[s]
		if !ok {
			return ferrors.InternalError("unknown configuration section").
				WithContext("section", string(s)).Build()
		}
		if err := v(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateDispatcher(cfg *Config) error {
	d := cfg.Dispatcher
	if strings.ContainsAny(d.ProxyHost, "/ ") || d.ProxyHost == "" {
		return ferrors.ConfigError("dispatcher.proxy_host must be a bare host[:port]").
			WithContext("proxy_host", d.ProxyHost).Build()
	}
	if d.URLScheme != "http" && d.URLScheme != "https" {
		return ferrors.ConfigError("dispatcher.url_scheme must be http or https").
			WithContext("url_scheme", d.URLScheme).Build()
	}
	return nil
}

func validateStore(s *StoreConfig) error {
	switch s.Type {
	case StoreS3:
		if s.Bucket == "" {
			return ferrors.ConfigError("store.bucket is required for the s3 store").Build()
		}
		if s.Region == "" {
			return ferrors.ConfigError("store.region is required for the s3 store").Build()
		}
		if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
			return ferrors.ConfigError("store credentials need both access key id and secret").Build()
		}
	case StoreFS:
		if s.Root == "" {
			return ferrors.ConfigError("store.root is required for the fs store").Build()
		}
	default:
		return ferrors.ConfigError("unsupported store type").
			WithContext("type", string(s.Type)).Build()
	}
	if s.OutputRoot == "" || strings.Contains(s.OutputRoot, "..") {
		return ferrors.ConfigError("store.output_root must be a non-empty relative prefix").
			WithContext("output_root", s.OutputRoot).Build()
	}
	return nil
}

func validateRouter(cfg *Config) error {
	u, err := url.Parse(cfg.Router.StoreBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ferrors.ConfigError("router.store_base_url must be an absolute http(s) URL").
			WithCause(err).
			WithContext("store_base_url", cfg.Router.StoreBaseURL).Build()
	}
	return nil
}

func validateLauncher(cfg *Config) error {
	l := cfg.Launcher
	switch l.Type {
	case LauncherECS:
		if l.ECS.Cluster == "" || l.ECS.TaskDefinition == "" {
			return ferrors.ConfigError("launcher.ecs requires cluster and task_definition").Build()
		}
		if l.ECS.AssignPublicIP != "ENABLED" && l.ECS.AssignPublicIP != "DISABLED" {
			return ferrors.ConfigError("launcher.ecs.assign_public_ip must be ENABLED or DISABLED").Build()
		}
	case LauncherNATS:
		return validateNATS(l.NATS)
	case LauncherProcess:
	default:
		return ferrors.ConfigError("unsupported launcher type").
			WithContext("type", string(l.Type)).Build()
	}
	return nil
}

func validateRegistry(cfg *Config) error {
	switch cfg.Registry.Type {
	case RegistryMemory, RegistrySQLite, RegistryRedis:
		return nil
	default:
		return ferrors.ConfigError("unsupported registry type").
			WithContext("type", string(cfg.Registry.Type)).Build()
	}
}

func validateBuild(cfg *Config) error {
	if strings.TrimSpace(cfg.Build.Command) == "" {
		return ferrors.ConfigError("build.command must not be empty").Build()
	}
	if strings.HasPrefix(cfg.Build.OutputDir, "/") || strings.Contains(cfg.Build.OutputDir, "..") {
		return ferrors.ConfigError("build.output_dir must stay inside the checkout").
			WithContext("output_dir", cfg.Build.OutputDir).Build()
	}
	return nil
}

func validateNATS(n NATSConfig) error {
	if n.URL == "" || n.Subject == "" || n.Stream == "" {
		return ferrors.ConfigError("launcher.nats requires url, stream and subject").Build()
	}
	return nil
}

// validateAgent checks what the agent reads: the NATS queue it consumes
// regardless of launcher.type, and its own consumer settings.
func validateAgent(cfg *Config) error {
	if err := validateNATS(cfg.Launcher.NATS); err != nil {
		return err
	}
	if cfg.Agent.Durable == "" || cfg.Agent.Concurrency <= 0 {
		return ferrors.ConfigError("agent requires a durable name and positive concurrency").
			WithContext("concurrency", cfg.Agent.Concurrency).Build()
	}
	return nil
}
