package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read by EnvConfig.
const EnvPrefix = "TASKBOARD_"

// EnvConfig holds deployment settings read from the environment.
type EnvConfig struct {
	TaskDrawLimit  int    `env:"TASK_DRAW_LIMIT" envDefault:"50"`
	GameConfigPath string `env:"GAME_CONFIG_PATH" envDefault:"data/game_config.json"`
	DatabasePath   string `env:"DB_PATH" envDefault:"taskboard.db"`
	Debug          bool   `env:"DEBUG"`
}

// ParseEnv loads configuration from the process environment.
func ParseEnv() (EnvConfig, error) {
	var c EnvConfig
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// ParseEnvMap loads configuration from an explicit variable map, such as the
// runtime env Nakama passes to plugins.
func ParseEnvMap(vars map[string]string) (EnvConfig, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	var c EnvConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars, Prefix: EnvPrefix}); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
