package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode        string
	Port        string
	Environment string
	Capacity    int
	Billing     BillingConfig
	OTelConfig  OTelConfig
}

type BillingConfig struct {
	HourlyRate         float64
	VIPDiscountPercent float64
	MinimumHours       int
	CurrencyPrecision  int
}

type OTelConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

// Load reads an optional .env file from the working directory, then the
// process environment. Values already set in the environment win over the
// file, and unparsable numbers fall back to their defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	return &Config{
		Mode:        envOr("APP_MODE", "cli"),
		Port:        envOr("APP_PORT", "8080"),
		Environment: envOr("ENVIRONMENT", "development"),
		Capacity:    envOrInt("LOT_CAPACITY", 30),
		Billing: BillingConfig{
			HourlyRate:         envOrFloat("HOURLY_RATE", 20),
			VIPDiscountPercent: envOrFloat("VIP_DISCOUNT_PERCENT", 25),
			MinimumHours:       envOrInt("MINIMUM_HOURS", 1),
			CurrencyPrecision:  envOrInt("CURRENCY_PRECISION", 2),
		},
		OTelConfig: OTelConfig{
			ServiceName:  envOr("OTEL_SERVICE_NAME", "parking-lot-service"),
			OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
