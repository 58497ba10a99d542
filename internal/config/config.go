package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML schema. Values not set in YAML fall back to the
// defaults applied in applyDefaults(); validation occurs in Validate().
type Config struct {
	Version  int      `yaml:"version"`
	General  General  `yaml:"general"`
	Server   Server   `yaml:"server"`
	Workflow Workflow `yaml:"workflow"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
}

type General struct {
	DataRoot string `yaml:"data_root"`
}

// Server describes how to reach the participant service.
type Server struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	TLSVerify      *bool  `yaml:"tls_verify"` // nil means verify
	UserAgent      string `yaml:"user_agent"`
}

// VerifyTLS reports whether certificate verification is enabled. An
// absent tls_verify key verifies.
func (s *Server) VerifyTLS() bool {
	return s.TLSVerify == nil || *s.TLSVerify
}

// Workflow holds the fine-tuning and polling knobs forwarded to the service.
type Workflow struct {
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	Profile             string  `yaml:"profile"`
	Epsilon             float64 `yaml:"epsilon"` // differential-privacy budget
}

type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // human|json
}

type Metrics struct {
	PrometheusTextfile PromTextfile `yaml:"prometheus_textfile"`
}

type PromTextfile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads, parses, expands, and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	// Expand ${ENV} placeholders before unmarshalling
	b = []byte(os.ExpandEnv(string(b)))
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.expandPaths(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultPath resolves the config location: FEDREC_CONFIG env var, then
// ~/.config/fedrec/config.yml.
func DefaultPath() string {
	if env := os.Getenv("FEDREC_CONFIG"); env != "" {
		return env
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".config", "fedrec", "config.yml")
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = 30
	}
	if c.Server.TLSVerify == nil {
		verify := true
		c.Server.TLSVerify = &verify
	}
	if c.Workflow.PollIntervalSeconds == 0 {
		c.Workflow.PollIntervalSeconds = 3
	}
	if c.Workflow.Profile == "" {
		c.Workflow.Profile = "profile_0"
	}
	if c.Workflow.Epsilon == 0 {
		c.Workflow.Epsilon = 1.0
	}
}

func (c *Config) expandPaths() error {
	var err error
	if c.General.DataRoot, err = expandTilde(c.General.DataRoot); err != nil {
		return err
	}
	if c.Metrics.PrometheusTextfile.Path, err = expandTilde(c.Metrics.PrometheusTextfile.Path); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.General.DataRoot == "" {
		return errors.New("general.data_root is required")
	}
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url invalid: %s", c.Server.BaseURL)
	}
	if c.Server.TimeoutSeconds < 0 {
		return errors.New("server.timeout_seconds must be >= 0")
	}
	if c.Workflow.PollIntervalSeconds < 1 {
		return errors.New("workflow.poll_interval_seconds must be >= 1")
	}
	if c.Workflow.Epsilon <= 0 {
		return errors.New("workflow.epsilon must be > 0")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level invalid: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "human", "json":
	default:
		return fmt.Errorf("logging.format invalid: %s", c.Logging.Format)
	}
	if c.Metrics.PrometheusTextfile.Enabled && c.Metrics.PrometheusTextfile.Path == "" {
		return errors.New("metrics.prometheus_textfile.path is required when enabled")
	}
	return nil
}

func expandTilde(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if p == "~" {
			return h, nil
		}
		return filepath.Join(h, p[2:]), nil
	}
	return p, nil
}

// DefaultYAML is the commented config written by `fedrec config init`.
const DefaultYAML = `version: 1

general:
  # Where fedrec keeps its preference database and lock file.
  data_root: ~/.local/share/fedrec

server:
  # Base URL of the participant service.
  base_url: http://localhost:8082
  timeout_seconds: 30
  tls_verify: true

workflow:
  # Cadence of the status poll while fine-tuning or computing.
  poll_interval_seconds: 3
  profile: profile_0
  # Differential-privacy budget forwarded with fine-tune requests.
  epsilon: 1.0

logging:
  level: info
  format: human

metrics:
  prometheus_textfile:
    enabled: false
    path: ~/.local/share/fedrec/metrics.prom
`

// WriteDefault writes DefaultYAML to path, refusing to overwrite.
func WriteDefault(path string) error {
	expanded, err := expandTilde(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return err
	}
	return os.WriteFile(expanded, []byte(DefaultYAML), 0o644)
}
