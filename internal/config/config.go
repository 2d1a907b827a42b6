package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	News    News    `yaml:"news"`
	Sources Sources `yaml:"sources"`
	Rewrite Rewrite `yaml:"rewrite"`
	Limits  Limits  `yaml:"limits"`
	Cache   Cache   `yaml:"cache"`
	Server  Server  `yaml:"server"`
}

// News configures the primary news provider (SerpApi Google News).
type News struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
	Language  string `yaml:"language"`
	Country   string `yaml:"country"`
	Results   int    `yaml:"results"`
}

type Sources struct {
	Feeds            []Feed `yaml:"feeds"`
	FetchFullContent bool   `yaml:"fetch_full_content"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Rewrite configures the text generation service used to rewrite articles.
type Rewrite struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Limits tunes the rewriting rate limiter and the pipeline batch sizes.
type Limits struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	IntervalMS    int `yaml:"interval_ms"`
	BatchSize     int `yaml:"batch_size"`
	OutputCap     int `yaml:"output_cap"`
}

// Cache configures the news cache file and the staleness policy.
// ForceRefresh bypasses the TTL and refreshes on every request; it burns
// provider quota and is meant for debugging only.
type Cache struct {
	Path         string `yaml:"path"`
	TTLMinutes   int    `yaml:"ttl_minutes"`
	ForceRefresh bool   `yaml:"force_refresh"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for newsroom.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsroom")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsroom/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsroom init' to create a default config",
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
		News: News{
			APIKeyEnv: "SERP_API_KEY",
			Language:  "es",
			Country:   "ES",
			Results:   70,
		},
		Rewrite: Rewrite{
			Model:     "gpt-3.5-turbo",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Limits: Limits{
			MaxConcurrent: 2,
			IntervalMS:    1000,
			BatchSize:     10,
			OutputCap:     15,
		},
		Cache: Cache{
			Path:       filepath.Join(".cache", "news_cache.json"),
			TTLMinutes: 30,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
