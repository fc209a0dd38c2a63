package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phistack/phistack/pkg/tracker"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "health_pct < 50", "perturbed_steps > 10",
	// "decoherence_events >= 3", "state == critical".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | pagerduty | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultRunTTL            = 30 * time.Minute
	DefaultBroadcastInterval = 5 * time.Second
	DefaultSimulateInterval  = 15 * time.Second
	DefaultTraceMetric       = "qdataset_state_amplitude"
)

// Config holds the server configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Runs controls in-memory run retention.
	Runs RunsConfig `yaml:"runs"`

	// BroadcastInterval is how often the WebSocket hub pushes the snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// SimulateInterval is how often the live simulation runs the default
	// tracker params. Zero disables the live loop.
	SimulateInterval time.Duration `yaml:"simulate_interval"`

	// Tracker holds the default simulation parameters and limits.
	Tracker TrackerConfig `yaml:"tracker"`

	// Traces lists probability-trace sources available for comparison.
	Traces []TraceSource `yaml:"traces"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RunsConfig controls in-memory run retention.
type RunsConfig struct {
	// TTL is how long a run stays in the store after it was created.
	// Default: 30m.
	TTL time.Duration `yaml:"ttl"`
}

// TrackerConfig holds the default simulation parameters and run limits.
type TrackerConfig struct {
	tracker.Params `yaml:",inline"`
	tracker.Limits `yaml:",inline"`
}

// TraceSource describes one probability-trace source.
type TraceSource struct {
	// ID is a unique, human-readable identifier for this trace.
	ID string `yaml:"id"`

	// Type is prometheus (HTTP exposition endpoint) or file (exposition on disk).
	Type string `yaml:"type"`

	// Endpoint is the URL fetched when Type == "prometheus".
	Endpoint string `yaml:"endpoint"`

	// Path is the file read when Type == "file".
	Path string `yaml:"path"`

	// Metric is the metric family holding the amplitudes.
	// Defaults to "qdataset_state_amplitude".
	Metric string `yaml:"metric"`

	// Auth configures how the server authenticates to an HTTP trace source.
	Auth SourceAuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// SourceAuthConfig specifies the authentication mode for a trace source.
type SourceAuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a SourceAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a SourceAuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a SourceAuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	for i := range cfg.Server.Traces {
		if cfg.Server.Traces[i].Metric == "" {
			cfg.Server.Traces[i].Metric = DefaultTraceMetric
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			Runs:              RunsConfig{TTL: DefaultRunTTL},
			BroadcastInterval: DefaultBroadcastInterval,
			SimulateInterval:  DefaultSimulateInterval,
			Tracker: TrackerConfig{
				Params: tracker.DefaultParams(),
				Limits: tracker.DefaultLimits(),
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Runs.TTL <= 0 {
		return fmt.Errorf("server.runs.ttl must be positive")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if s.SimulateInterval < 0 {
		return fmt.Errorf("server.simulate_interval must not be negative")
	}

	t := s.Tracker
	if t.Baseline < 1 {
		return fmt.Errorf("server.tracker.baseline must be >= 1")
	}
	if t.Timesteps < 1 {
		return fmt.Errorf("server.tracker.timesteps must be >= 1")
	}
	if t.DecoherenceChance < 0 || t.DecoherenceChance > 1 {
		return fmt.Errorf("server.tracker.decoherence_chance %v is outside [0, 1]", t.DecoherenceChance)
	}
	if len(t.Replacements) == 0 {
		return fmt.Errorf("server.tracker.replacements must not be empty")
	}
	for _, m := range t.Replacements {
		if m < 1 {
			return fmt.Errorf("server.tracker.replacements: %d must be >= 1", m)
		}
	}
	if t.MaxQubits < 1 || t.MaxTimesteps < 1 {
		return fmt.Errorf("server.tracker.max_qubits and max_timesteps must be positive")
	}
	if err := t.Params.Validate(t.Limits); err != nil {
		return fmt.Errorf("server.tracker: %w", err)
	}

	seen := make(map[string]bool, len(s.Traces))
	for i, src := range s.Traces {
		if src.ID == "" {
			return fmt.Errorf("traces[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("traces[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		switch src.Type {
		case "prometheus":
			if src.Endpoint == "" {
				return fmt.Errorf("traces[%d] %q: endpoint is required", i, src.ID)
			}
		case "file":
			if src.Path == "" {
				return fmt.Errorf("traces[%d] %q: path is required", i, src.ID)
			}
		default:
			return fmt.Errorf("traces[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("traces[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}
	return nil
}
