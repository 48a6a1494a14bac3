package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds lcmdemo's runtime configuration, loaded from environment
// variables. Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	URL             string `env:"LCMDEMO_URL" envDefault:"tcpq://127.0.0.1:7700"`
	PublishChannel  string `env:"LCMDEMO_PUBLISH_CHANNEL" envDefault:"EXAMPLE"`
	SubscribePattern string `env:"LCMDEMO_SUBSCRIBE_PATTERN" envDefault:".*"`
	LogLevel        string `env:"LCMDEMO_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LCMDEMO_LOG_FORMAT" envDefault:"console"`
	MetricsAddr     string `env:"LCMDEMO_METRICS_ADDR" envDefault:":9090"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
