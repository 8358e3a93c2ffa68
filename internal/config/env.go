// Package config reads process settings from the environment. Command-line
// flags in cmd/ override whatever is loaded here.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Server struct {
	Addr      string `env:"GARRISON_ADDR" envDefault:":8080"`
	ConfigDir string `env:"GARRISON_CONFIG_DIR" envDefault:"./configs"`
	DataDir   string `env:"GARRISON_DATA_DIR" envDefault:"./data"`

	// DBDriver is "sqlite" or "postgres". An empty DSN with sqlite means
	// <DataDir>/garrison.sqlite.
	DBDriver string `env:"GARRISON_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"GARRISON_DB_DSN"`

	// Empty disables cross-process fan-out.
	RedisAddr   string `env:"GARRISON_REDIS_ADDR"`
	RedisPrefix string `env:"GARRISON_REDIS_PREFIX" envDefault:"garrison:"`

	LogLevel  string `env:"GARRISON_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GARRISON_LOG_FORMAT" envDefault:"json"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadServer() (Server, error) {
	var s Server
	err := ParseEnv(&s)
	return s, err
}
