package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	LedgerMaxAttempts   int `env:"LEDGER_MAX_ATTEMPTS" envDefault:"3"`
	LedgerRetryBaseMS   int `env:"LEDGER_RETRY_BASE_MS" envDefault:"25"`
	LedgerRetryMaxMS    int `env:"LEDGER_RETRY_MAX_MS" envDefault:"250"`
	CurrencyMinorDigits int `env:"CURRENCY_MINOR_DIGITS" envDefault:"2"`

	IdempotencyTTL           time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyPurgeInterval time.Duration `env:"IDEMPOTENCY_PURGE_INTERVAL" envDefault:"10m"`
	DuplicateWindow          time.Duration `env:"DUPLICATE_WINDOW" envDefault:"5m"`

	RosterTrustThreshold int `env:"ROSTER_TRUST_THRESHOLD" envDefault:"70"`

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
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if c.LedgerMaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1, got %d", c.LedgerMaxAttempts)
	}
	if c.CurrencyMinorDigits < 0 || c.CurrencyMinorDigits > 6 {
		return fmt.Errorf("CURRENCY_MINOR_DIGITS must be between 0 and 6, got %d", c.CurrencyMinorDigits)
	}
	if c.IdempotencyPurgeInterval <= 0 {
		return fmt.Errorf("IDEMPOTENCY_PURGE_INTERVAL must be positive, got %s", c.IdempotencyPurgeInterval)
	}
	if c.RosterTrustThreshold < 0 || c.RosterTrustThreshold > 100 {
		return fmt.Errorf("ROSTER_TRUST_THRESHOLD must be between 0 and 100, got %d", c.RosterTrustThreshold)
	}
	return nil
}

func (c Config) RetryBase() time.Duration {
	return time.Duration(c.LedgerRetryBaseMS) * time.Millisecond
}

func (c Config) RetryMax() time.Duration {
	return time.Duration(c.LedgerRetryMaxMS) * time.Millisecond
}
