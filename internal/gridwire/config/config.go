// Package config defines gridwire's process configuration, loaded from
// the environment at startup.
package config

import (
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/gridwire/internal/platform/cmd"
)

// Config captures runtime configuration for the gridwire server.
type Config struct {
	HTTPAddress      string `env:"GRIDWIRE_HTTP_ADDRESS" envDefault:"0.0.0.0:8080"`
	StorePath        string `env:"GRIDWIRE_STORE_PATH" envDefault:"gridwire.db"`
	LogLevel         string `env:"GRIDWIRE_LOG_LEVEL" envDefault:"info"`
	OTelServiceName  string `env:"GRIDWIRE_OTEL_SERVICE_NAME" envDefault:"gridwire"`
	SubscriberBuffer int    `env:"GRIDWIRE_SUBSCRIBER_BUFFER" envDefault:"1024"`
}

// Load parses Config from the environment and validates required fields.
func Load() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("GRIDWIRE_HTTP_ADDRESS is required")
	}
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("GRIDWIRE_STORE_PATH is required")
	}
	if strings.TrimSpace(c.OTelServiceName) == "" {
		return fmt.Errorf("GRIDWIRE_OTEL_SERVICE_NAME is required")
	}
	return nil
}
