// Package config содержит логику чтения конфигурации сервиса наград.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса наград.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	LedgerAddress string `env:"LEDGER_ADDRESS"`
	RewardBaseURL string `env:"REWARD_BASE_URL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envLedgerAddress := cfg.LedgerAddress
	envRewardBaseURL := cfg.RewardBaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:3001", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.LedgerAddress, "l", "", "ledger gateway address")
	flag.StringVar(&cfg.RewardBaseURL, "b", "", "base URL for reward metadata")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envLedgerAddress != "" {
		cfg.LedgerAddress = envLedgerAddress
	}
	if envRewardBaseURL != "" {
		cfg.RewardBaseURL = envRewardBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:3001"
	}
	if cfg.RewardBaseURL == "" {
		cfg.RewardBaseURL = fmt.Sprintf("http://%s/api/v1/reward", cfg.RunAddress)
	}

	return cfg, nil
}
