package config

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/carefinder/pkg/debounce"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

//go:embed config.toml.sample
var configTemplate string

const samplePlaceholderDir = "/home/user/.local/share/carefinder"

type Config struct {
	StorageDir string        `toml:"storage_dir"`
	Search     SearchConfig  `toml:"search"`
	Web        WebConfig     `toml:"web"`
	Catalog    CatalogConfig `toml:"catalog"`
}

type SearchConfig struct {
	// Debounce is how long the search box waits after the last keystroke.
	Debounce Duration `toml:"debounce"`
	// Freshness is how long a cached result page is served without refetching.
	Freshness Duration `toml:"freshness"`
	// RemoteURL is the remote search endpoint. Empty searches the local index.
	RemoteURL string `toml:"remote_url"`
	APIToken  string `toml:"api_token"`
	// FallbackDataset overrides the bundled dataset served when search fails.
	FallbackDataset string `toml:"fallback_dataset"`
	LoginPath       string `toml:"login_path"`
}

type WebConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

// CatalogConfig schedules provider feed imports while the web server runs.
type CatalogConfig struct {
	OptimizeInterval Duration     `toml:"optimize_interval"`
	Feeds            []FeedConfig `toml:"feeds"`
}

type FeedConfig struct {
	Name     string   `toml:"name"`
	Path     string   `toml:"path"`
	Interval Duration `toml:"interval"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	c := &Config{StorageDir: storageDir}
	c.applyDefaults()
	return c, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Search.Debounce.Duration <= 0 {
		c.Search.Debounce = Duration{debounce.DefaultDelay}
	}
	if c.Search.Freshness.Duration <= 0 {
		c.Search.Freshness = Duration{executor.DefaultFreshness}
	}
	if c.Search.LoginPath == "" {
		c.Search.LoginPath = tiering.DefaultLoginPath
	}
	if c.Web.Host == "" {
		c.Web.Host = "localhost"
	}
	if c.Web.Port == "" {
		c.Web.Port = "8080"
	}
}

// Validate checks the values a server cannot start without.
func (c *Config) Validate() error {
	if c.Search.RemoteURL != "" && !strings.HasPrefix(c.Search.RemoteURL, "http://") && !strings.HasPrefix(c.Search.RemoteURL, "https://") {
		return fmt.Errorf("search.remote_url must be an http(s) URL, got %q", c.Search.RemoteURL)
	}
	if !strings.HasPrefix(c.Search.LoginPath, "/") {
		return fmt.Errorf("search.login_path must start with /, got %q", c.Search.LoginPath)
	}
	seen := make(map[string]bool)
	for i, f := range c.Catalog.Feeds {
		if f.Name == "" || f.Path == "" {
			return fmt.Errorf("catalog.feeds[%d] needs a name and a path", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("catalog feed %q is defined twice", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Addr is the host:port the web server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Web.Host, c.Web.Port)
}

// FallbackPath resolves the fallback dataset override relative to the
// storage directory. Empty means the bundled dataset.
func (c *Config) FallbackPath() string {
	p := c.Search.FallbackDataset
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.StorageDir, p)
}

// FeedPath resolves a catalog feed path relative to the storage directory.
func (c *Config) FeedPath(f FeedConfig) string {
	if filepath.IsAbs(f.Path) {
		return f.Path
	}
	return filepath.Join(c.StorageDir, f.Path)
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	template := strings.Replace(configTemplate, samplePlaceholderDir, storageDir, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "carefinder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for carefinder
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "carefinder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
