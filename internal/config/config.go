package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackendConfig points the console at the search backend's admin API.
type BackendConfig struct {
	URL      string `yaml:"url"`
	Insecure bool   `yaml:"insecure"` // skip TLS verification
	CACert   string `yaml:"ca_cert"`  // PEM bundle
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "ecs"
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config holds all configuration (CLI flags + environment + config file).
type Config struct {
	Listen       string        `yaml:"listen"`
	Backend      BackendConfig `yaml:"backend"`
	RefreshDelay time.Duration `yaml:"refresh_delay"`
	Log          LogConfig     `yaml:"log"`
	Metrics      MetricsConfig `yaml:"metrics"`

	// internal: path to config file (from CLI flag)
	configFile string
}

const (
	DefaultListen       = ":8080"
	DefaultRefreshDelay = time.Second
)

// Parse reads CLI flags, then the environment (.env included), then the
// config file. Earlier sources take precedence over later ones.
func Parse() *Config {
	c, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	return c
}

// ParseArgs is Parse against an explicit flag set and argument list.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := &Config{}
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&c.Listen, "listen", "", "HTTP listen address")
	fs.StringVar(&c.Backend.URL, "backend", "", "Search backend base URL")
	fs.StringVar(&c.Log.Level, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", "", "Log format (console, ecs)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env is normal
	_ = godotenv.Load()
	c.loadEnv()

	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	if c.Backend.URL == "" {
		return nil, fmt.Errorf("backend URL is required (-backend, SEARCH_ADMIN_BACKEND or backend.url)")
	}
	return c, nil
}

// loadEnv fills values not set on the command line from SEARCH_ADMIN_* variables.
func (c *Config) loadEnv() {
	setIfEmpty(&c.Listen, os.Getenv("SEARCH_ADMIN_LISTEN"))
	setIfEmpty(&c.Backend.URL, os.Getenv("SEARCH_ADMIN_BACKEND"))
	setIfEmpty(&c.Log.Level, os.Getenv("SEARCH_ADMIN_LOG_LEVEL"))
	setIfEmpty(&c.Log.Format, os.Getenv("SEARCH_ADMIN_LOG_FORMAT"))
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding flag or variable was not set.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	setIfEmpty(&c.Listen, file.Listen)
	setIfEmpty(&c.Backend.URL, file.Backend.URL)
	setIfEmpty(&c.Backend.CACert, file.Backend.CACert)
	setIfEmpty(&c.Log.Level, file.Log.Level)
	setIfEmpty(&c.Log.Format, file.Log.Format)

	// File-only settings
	c.Backend.Insecure = file.Backend.Insecure
	c.RefreshDelay = file.RefreshDelay
	c.Metrics = file.Metrics

	return nil
}

func (c *Config) applyDefaults() {
	setIfEmpty(&c.Listen, DefaultListen)
	setIfEmpty(&c.Log.Level, "info")
	setIfEmpty(&c.Log.Format, "console")
	if c.RefreshDelay <= 0 {
		c.RefreshDelay = DefaultRefreshDelay
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
