package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/request"
)

// SessionEnv overrides site.session when set.
const SessionEnv = "SKYCRAWLER_SESSION"

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Site     Site     `yaml:"site"`
	Observer Observer `yaml:"observer"`
	Targets  []int    `yaml:"targets"`
	Flares   Flares   `yaml:"flares"`
	Pages    int      `yaml:"pages"`
	Output   Output   `yaml:"output"`
	Fetch    Fetch    `yaml:"fetch"`
	Schedule Schedule `yaml:"schedule"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Site struct {
	BaseURL        string `yaml:"base_url"`
	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`
	Session        string `yaml:"session"`
	Preferences    string `yaml:"preferences"`
}

type Observer struct {
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
	Place     string  `yaml:"place"`
	Altitude  int     `yaml:"alt"`
	Timezone  string  `yaml:"tz"`
}

type Flares struct {
	Enabled bool `yaml:"enabled"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	Fresh   bool   `yaml:"fresh"`
}

type Fetch struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for skycrawler.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "skycrawler")
}

// DataDir returns the XDG data directory for skycrawler.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "skycrawler")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/skycrawler/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'skycrawler init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv reads .env files from the working directory into the process
// environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Site: Site{
			BaseURL:        "https://www.heavens-above.com/",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Observer: Observer{Timezone: "UCT"},
		Flares:   Flares{Enabled: true},
		Pages:    1,
		Fetch:    Fetch{Timeout: 30 * time.Second},
		Schedule: Schedule{Cron: "0 6 * * *"},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Pages < 1 {
		return nil, fmt.Errorf("parsing config: pages must be at least 1, got %d", cfg.Pages)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(SessionEnv); v != "" {
		c.Site.Session = v
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// ArtifactDir is where per-category detail tables and charts are cached.
func (c *Config) ArtifactDir() string {
	return filepath.Join(c.GetDataDir(), "artifacts")
}

// PublishDir is where the per-category JSON feeds are written.
func (c *Config) PublishDir() string {
	return filepath.Join(c.GetDataDir(), "public", "data")
}

// DatabasePath is the sqlite run history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "skycrawler.db")
}

// Profile returns the request profile for the configured site and observer.
func (c *Config) Profile() request.Profile {
	return request.Profile{
		BaseURL:        c.Site.BaseURL,
		UserAgent:      c.Site.UserAgent,
		AcceptLanguage: c.Site.AcceptLanguage,
		SessionID:      c.Site.Session,
		Preferences:    c.Site.Preferences,
		Observer: request.Observer{
			Latitude:  c.Observer.Latitude,
			Longitude: c.Observer.Longitude,
			Place:     c.Observer.Place,
			Altitude:  c.Observer.Altitude,
			Timezone:  c.Observer.Timezone,
		},
	}
}

// EventTypes returns the categories to collect: one per satellite target,
// plus flares when enabled.
func (c *Config) EventTypes() []events.EventType {
	var out []events.EventType
	for _, id := range c.Targets {
		out = append(out, events.Satellite(id))
	}
	if c.Flares.Enabled {
		out = append(out, events.Flares())
	}
	return out
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
