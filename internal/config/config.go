package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// PollTimeout is how long a poll request is held open when there is
	// nothing to push.
	PollTimeout       time.Duration `yaml:"poll_timeout"`
	PushThrottle      time.Duration `yaml:"push_throttle"`
	GeneratorInterval time.Duration `yaml:"generator_interval"`

	// SessionIdle is how long a UI session may go without a request
	// before the server forgets it.
	SessionIdle time.Duration `yaml:"session_idle"`
}

type ClientConfig struct {
	URL       string `yaml:"url"`
	Transport string `yaml:"transport"` // "http" or "ws"
	Token     string `yaml:"token"`
	Mode      string `yaml:"mode"` // "remote" or "local"

	Poll          bool `yaml:"poll"`
	ResumePolling bool `yaml:"resume_polling"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			Host:              "127.0.0.1",
			PollTimeout:       60 * time.Second,
			PushThrottle:      100 * time.Millisecond,
			GeneratorInterval: time.Second,
			SessionIdle:       10 * time.Minute,
		},
		Client: ClientConfig{
			URL:            "http://127.0.0.1:8080",
			Transport:      "http",
			Mode:           "remote",
			Poll:           true,
			ResumePolling:  true,
			RequestTimeout: 10 * time.Second,
			PollTimeout:    75 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Client.Transport {
	case "http", "ws":
	default:
		return fmt.Errorf("client.transport must be http or ws, got %q", c.Client.Transport)
	}
	if c.Server.PollTimeout <= 0 {
		return fmt.Errorf("server.poll_timeout must be positive")
	}
	if c.Client.PollTimeout <= c.Server.PollTimeout {
		return fmt.Errorf("client.poll_timeout (%v) must exceed server.poll_timeout (%v)", c.Client.PollTimeout, c.Server.PollTimeout)
	}
	return nil
}

// Addr is the server's listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
