package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// SettleWaitTimeout bounds how long a caller that lost the settle race
	// waits for the winner's result before giving up with a retryable error.
	SettleWaitTimeout time.Duration `env:"SETTLE_WAIT_TIMEOUT" envDefault:"5s"`
	// SettlePollInterval is how often a waiting caller re-reads the
	// settlement row.
	SettlePollInterval time.Duration `env:"SETTLE_POLL_INTERVAL" envDefault:"50ms"`
	// SettleTakeoverAfter is the age at which an in-flight "settling" row is
	// considered abandoned (crashed worker) and may be claimed by a new call.
	SettleTakeoverAfter time.Duration `env:"SETTLE_TAKEOVER_AFTER" envDefault:"30s"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
