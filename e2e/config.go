package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_URL targets a running relay, an in-process relay is started when empty
	RelayURL   string `envconfig:"RELAY_URL"`
	HealthAddr string `envconfig:"RELAY_HEALTH_ADDR"`
	// E2E_DEBUG_FRAMES dumps every frame read from the relay
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
