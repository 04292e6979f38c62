package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/collector"
)

// FileName is the config file looked up in a workspace.
const FileName = "testtracker.yml"

// Config models testtracker.yml.
type Config struct {
	Service   Service             `yaml:"service" json:"service"`
	Run       collector.RunConfig `yaml:"run" json:"run"`
	Collector Collector           `yaml:"collector" json:"collector"`
	Log       Log                 `yaml:"log" json:"log"`
}

type Service struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	User    string `yaml:"user" json:"user"`
	// APIKey is the account password or an API key.
	APIKey string `yaml:"api_key" json:"-"`

	RetryCount               int           `yaml:"retry_count" json:"retry_count"`
	RetryInterval            time.Duration `yaml:"retry_interval" json:"retry_interval"`
	ConnectTimeout           time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ConnectionRequestTimeout time.Duration `yaml:"connection_request_timeout" json:"connection_request_timeout"`
	SocketTimeout            time.Duration `yaml:"socket_timeout" json:"socket_timeout"`
}

type Collector struct {
	ArtifactPath string `yaml:"artifact_path" json:"artifact_path"`
	AbortOnError bool   `yaml:"abort_on_error" json:"abort_on_error"`
	CacheLookups bool   `yaml:"cache_lookups" json:"cache_lookups"`
	Metrics      bool   `yaml:"metrics" json:"metrics"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Service: Service{
			RetryCount:    trackersdk.DefaultRetryCount,
			RetryInterval: trackersdk.DefaultRetryInterval,
		},
		Run:       collector.RunConfig{Publish: true},
		Collector: Collector{ArtifactPath: collector.DefaultArtifactPath},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tt config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// FromYAML parses config from raw YAML bytes over the defaults. It does not
// validate: flags and environment may still fill the service fields.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks what a client needs to reach the service.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return fmt.Errorf("config.service.base_url is required")
	}
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.service.base_url %q is not an absolute URL", c.Service.BaseURL)
	}
	if c.Service.User == "" {
		return fmt.Errorf("config.service.user is required")
	}
	if c.Service.APIKey == "" {
		return fmt.Errorf("config.service.api_key is required (set TESTTRACKER_API_KEY)")
	}
	if c.Service.RetryCount < 0 {
		return fmt.Errorf("config.service.retry_count must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"retry_interval":             c.Service.RetryInterval,
		"connect_timeout":            c.Service.ConnectTimeout,
		"connection_request_timeout": c.Service.ConnectionRequestTimeout,
		"socket_timeout":             c.Service.SocketTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config.service.%s must not be negative", name)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// GenerateDefault returns a commented testtracker.yml for baseURL.
func GenerateDefault(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8089/api/v2"
	}
	return fmt.Sprintf(defaultTemplate, baseURL)
}

const defaultTemplate = `service:
  base_url: %s
  user: admin@example.com
  # api_key is better kept in TESTTRACKER_API_KEY or .env
  api_key: ""
  retry_count: 5
  retry_interval: 10s
  connect_timeout: 30s
  connection_request_timeout: 30s
  socket_timeout: 30s

run:
  project: ""
  milestone: ""
  run: ""
  suite: ""
  section: ""
  publish: true
  create_milestone: false
  create_suite: false
  create_run: false
  create_section: false
  version: ""

collector:
  artifact_path: testtracker-results.json
  abort_on_error: false
  cache_lookups: false
  metrics: false

log:
  level: info
  format: text
`
