package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Run modes.
const (
	ModeRun   = "run"   // simulate, print the report and exit
	ModeServe = "serve" // simulate, then serve results over HTTP
)

// AppConfig holds all application configuration loaded from environment variables.
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "console" or "json".
	LogFormat string
	// LogFile, when set, receives a copy of every log line.
	LogFile string

	// ScenarioPath is an optional YAML scenario overriding parameters and deals.
	ScenarioPath string
	// Months overrides the scenario length when positive.
	Months int
	// Mode is ModeRun or ModeServe.
	Mode string
	// WebPort is the port the API listens on in serve mode.
	WebPort int
	// Report prints the monthly table to stdout when true.
	Report bool
	// MonthlyPriceDrift overrides the scenario drift when set.
	MonthlyPriceDrift *float64
}

// LoadConfig loads configuration from environment variables, applying defaults for
// anything unset.
func LoadConfig() (AppConfig, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	var (
		cfg AppConfig
		err error
	)

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console"))
	cfg.LogFile = getEnvOrDefault("LOG_FILE", "")
	cfg.ScenarioPath = getEnvOrDefault("SIM_SCENARIO", "")
	cfg.Mode = strings.ToLower(getEnvOrDefault("SIM_MODE", ModeRun))

	cfg.Months, err = getEnvAsIntOrDefault("SIM_MONTHS", 0)
	if err != nil {
		return AppConfig{}, err
	}

	cfg.WebPort, err = getEnvAsIntOrDefault("WEB_PORT", 8080)
	if err != nil {
		return AppConfig{}, err
	}

	cfg.Report, err = getEnvAsBoolOrDefault("SIM_REPORT", true)
	if err != nil {
		return AppConfig{}, err
	}

	if _, set := os.LookupEnv("SIM_PRICE_DRIFT"); set {
		drift, err := getEnvAsFloat64OrDefault("SIM_PRICE_DRIFT", 0)
		if err != nil {
			return AppConfig{}, err
		}
		cfg.MonthlyPriceDrift = &drift
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	log.Debug().
		Str("mode", cfg.Mode).
		Str("scenario", cfg.ScenarioPath).
		Int("months", cfg.Months).
		Int("webPort", cfg.WebPort).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// Validate checks the loaded values.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Mode != ModeRun && c.Mode != ModeServe {
		errs = append(errs, errors.New("SIM_MODE must be run or serve, got: "+c.Mode))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, errors.New("LOG_FORMAT must be console or json, got: "+c.LogFormat))
	}
	if c.Months < 0 {
		errs = append(errs, errors.New("SIM_MONTHS must not be negative"))
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		errs = append(errs, errors.New("WEB_PORT must be a valid port, got: "+strconv.Itoa(c.WebPort)))
	}
	return errors.Join(errs...)
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	value, err := getEnv(key)
	if err != nil || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64. Returns error if set but invalid.
func getEnvAsFloat64OrDefault(key string, fallback float64) (float64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBoolOrDefault retrieves an environment variable as a bool. Returns error if set but invalid.
func getEnvAsBoolOrDefault(key string, fallback bool) (bool, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
