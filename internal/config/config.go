// Package config содержит логику чтения конфигурации сервиса администрирования полисов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	FinanceSystemAddress string `env:"FINANCE_SYSTEM_ADDRESS"`
	AuthSecret           string `env:"AUTH_SECRET"`

	FinanceEmail       string   `env:"FINANCE_EMAIL"`
	CompanyName        string   `env:"COMPANY_NAME" envDefault:"Life Assurance"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	SMTP SMTPConfig `envPrefix:"SMTP_"`
}

// SMTPConfig: параметры почтового сервера. Пустой Host отключает отправку писем.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFinanceAddress := cfg.FinanceSystemAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FinanceSystemAddress, "f", "", "finance system address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth token signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envFinanceAddress != "" {
		cfg.FinanceSystemAddress = envFinanceAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
