package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Baseline policies.
const (
	BaselineRefetch    = "refetch"
	BaselineRun        = "run"
	BaselinePersistent = "persistent"
)

// Search backends.
const (
	SearchAPI  = "api"
	SearchFeed = "feed"
)

type Config struct {
	Input      string    `yaml:"input"`
	DebugLimit int       `yaml:"debug_limit"`
	Output     Output    `yaml:"output"`
	Reddit     Reddit    `yaml:"reddit"`
	Search     Search    `yaml:"search"`
	Enrich     Enrich    `yaml:"enrich"`
	Baseline   Baseline  `yaml:"baseline"`
	Citations  Citations `yaml:"citations"`
}

type Output struct {
	Dir     string `yaml:"dir"`
	DataDir string `yaml:"data_dir"`
}

type Reddit struct {
	ClientIDEnv       string        `yaml:"client_id_env"`
	ClientSecretEnv   string        `yaml:"client_secret_env"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
	ExpandMore        bool          `yaml:"expand_more"`
}

type Search struct {
	Backend        string `yaml:"backend"`
	Limit          int    `yaml:"limit"`
	MaxCommunities int    `yaml:"max_communities"`
}

type Enrich struct {
	Concurrency int `yaml:"concurrency"`
}

type Baseline struct {
	Policy     string        `yaml:"policy"`
	SampleSize int           `yaml:"sample_size"`
	TTL        time.Duration `yaml:"ttl"`
}

type Citations struct {
	FetchTitles bool          `yaml:"fetch_titles"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ConfigDir returns the XDG config directory for threadscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "threadscout")
}

// DataDir returns the XDG data directory for threadscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "threadscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/threadscout/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'threadscout init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Input:      "reddit_citation_tracker.csv",
		DebugLimit: 15,
		Output:     Output{Dir: "."},
		Reddit: Reddit{
			ClientIDEnv:       "REDDIT_CLIENT_ID",
			ClientSecretEnv:   "REDDIT_CLIENT_SECRET",
			UserAgent:         "threadscout/1.0 (citation opportunity scanner)",
			RequestsPerMinute: 60,
			Timeout:           30 * time.Second,
			ExpandMore:        true,
		},
		Search: Search{
			Backend:        SearchAPI,
			Limit:          10,
			MaxCommunities: 100,
		},
		Enrich: Enrich{Concurrency: 4},
		Baseline: Baseline{
			Policy:     BaselineRefetch,
			SampleSize: 100,
			TTL:        6 * time.Hour,
		},
		Citations: Citations{
			FetchTitles: true,
			Timeout:     15 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Baseline.Policy {
	case BaselineRefetch, BaselineRun, BaselinePersistent:
	default:
		return fmt.Errorf("unknown baseline policy: %q", c.Baseline.Policy)
	}
	switch c.Search.Backend {
	case SearchAPI, SearchFeed:
	default:
		return fmt.Errorf("unknown search backend: %q", c.Search.Backend)
	}
	if c.Enrich.Concurrency < 1 {
		c.Enrich.Concurrency = 1
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// OutputPath joins name onto the configured output directory.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.Output.Dir, name)
}

// Credentials returns the Reddit API credentials from the environment.
func (c *Config) Credentials() (clientID, clientSecret string) {
	return os.Getenv(c.Reddit.ClientIDEnv), os.Getenv(c.Reddit.ClientSecretEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
