package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultWebserverPort is used when config.webserver_port is not set.
const DefaultWebserverPort = 8888

// Config is the parsed main configuration file.
type Config struct {
	Logging Logging `yaml:"logging"`
	Daemon  Daemon  `yaml:"config"`
}

// Logging configures the logging subsystem.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Daemon holds the daemon configuration section.
type Daemon struct {
	TasksLocation     string `yaml:"tasks_location"`
	ProvidersLocation string `yaml:"providers_location"`
	ActionsLocation   string `yaml:"actions_location"`
	WebserverEnabled  bool   `yaml:"webserver_enabled"`
	WebserverPort     int    `yaml:"webserver_port"`
	WebserverDebug    bool   `yaml:"webserver_debug"`
}

// Load reads and validates the main configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Daemon.TasksLocation == "" {
		return nil, fmt.Errorf("config section tasks_location is missing in %s", path)
	}
	if cfg.Daemon.ProvidersLocation == "" {
		return nil, fmt.Errorf("config section providers_location is missing in %s", path)
	}
	if cfg.Daemon.ActionsLocation == "" {
		return nil, fmt.Errorf("config section actions_location is missing in %s", path)
	}

	if cfg.Daemon.WebserverPort == 0 {
		cfg.Daemon.WebserverPort = DefaultWebserverPort
	}

	return &cfg, nil
}
