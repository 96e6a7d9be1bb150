package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	Runner    RunnerConfig    `yaml:"runner"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GeneratorConfig selects and tunes the generation producer. Mode is
// "scripted" (built-in templates) or "remote" (external service at
// RemoteURL).
type GeneratorConfig struct {
	Mode        string        `yaml:"mode"`
	RemoteURL   string        `yaml:"remote_url"`
	StreamDelay time.Duration `yaml:"stream_delay"`
	ChunkSize   int           `yaml:"chunk_size"`
}

type RunnerConfig struct {
	WorkDir        string        `yaml:"work_dir"`
	PortBase       int           `yaml:"port_base"`
	PortSpan       int           `yaml:"port_span"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	StopGrace      time.Duration `yaml:"stop_grace"`
	KillGrace      time.Duration `yaml:"kill_grace"`
	LogHistory     int           `yaml:"log_history"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Generator: GeneratorConfig{
			Mode:        "scripted",
			StreamDelay: 75 * time.Millisecond,
			ChunkSize:   256,
		},
		Runner: RunnerConfig{
			PortBase:       8100,
			PortSpan:       100,
			StartupTimeout: 15 * time.Second,
			StopGrace:      3 * time.Second,
			KillGrace:      2 * time.Second,
			LogHistory:     500,
		},
	}
}

// Load reads the config file at path over the defaults. A missing or
// unparsable file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

// LoadOrDefault is Load, except a missing file falls back to the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) validate() error {
	switch c.Generator.Mode {
	case "scripted":
	case "remote":
		if c.Generator.RemoteURL == "" {
			return fmt.Errorf("generator.mode is remote but generator.remote_url is empty")
		}
	default:
		return fmt.Errorf("unknown generator.mode %q", c.Generator.Mode)
	}
	if c.Runner.PortSpan <= 0 {
		return fmt.Errorf("runner.port_span must be positive, got %d", c.Runner.PortSpan)
	}
	return nil
}
