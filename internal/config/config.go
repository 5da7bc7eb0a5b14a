// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database paths, rate limiting, the gateway and weather upstream
// credentials, and observability settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig defines the Evolution API connection.
type GatewayConfig struct {
	ServerURL string // EVOLUTION_SERVER_URL (e.g. "http://evolution:8080")
	Instance  string // EVOLUTION_INSTANCE
	APIKey    string // EVOLUTION_API_KEY
}

// WeatherConfig defines the OpenWeather upstream and advisory thresholds.
type WeatherConfig struct {
	APIKey         string        // WEATHER_API_KEY (empty disables weather)
	CityID         string        // WEATHER_CITY_ID
	HotAbove       float64       // WEATHER_HOT_ABOVE, Celsius
	ColdBelow      float64       // WEATHER_COLD_BELOW, Celsius
	UpdateInterval time.Duration // WEATHER_UPDATE_INTERVAL
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath   string // SQLite path
	Timezone string // IANA name, e.g. America/Sao_Paulo
	GroupID  string // WhatsApp group JID, "<digits>@g.us"

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Upstreams
	Gateway GatewayConfig
	Weather WeatherConfig

	// Observability
	OTEL OTELConfig
}

var groupIDRe = regexp.MustCompile(`^\d+(-\d+)?@g\.us$`)

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:   getenv("DB_PATH", "traffic.db"),
		Timezone: getenv("TIMEZONE", "America/Sao_Paulo"),
		GroupID:  getenv("GROUP_ID", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Upstreams
		Gateway: GatewayConfig{
			ServerURL: strings.TrimRight(getenv("EVOLUTION_SERVER_URL", ""), "/"),
			Instance:  getenv("EVOLUTION_INSTANCE", ""),
			APIKey:    getenv("EVOLUTION_API_KEY", ""),
		},
		Weather: WeatherConfig{
			APIKey:         getenv("WEATHER_API_KEY", ""),
			CityID:         getenv("WEATHER_CITY_ID", "3466537"),
			HotAbove:       getfloat("WEATHER_HOT_ABOVE", 35),
			ColdBelow:      getfloat("WEATHER_COLD_BELOW", 10),
			UpdateInterval: getdur("WEATHER_UPDATE_INTERVAL", 30*time.Minute),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-traffic-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		return cfg, errors.New("TIMEZONE must not be empty")
	}
	if cfg.GroupID == "" {
		return cfg, errors.New("GROUP_ID must be set")
	}
	if !groupIDRe.MatchString(cfg.GroupID) {
		return cfg, fmt.Errorf("GROUP_ID must look like '<digits>@g.us', got %q", cfg.GroupID)
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if err := validateGateway(cfg.Gateway); err != nil {
		return cfg, err
	}
	if cfg.Weather.APIKey != "" && strings.TrimSpace(cfg.Weather.CityID) == "" {
		return cfg, errors.New("WEATHER_CITY_ID must be set when WEATHER_API_KEY is")
	}
	if cfg.Weather.UpdateInterval <= 0 {
		return cfg, errors.New("WEATHER_UPDATE_INTERVAL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func validateGateway(g GatewayConfig) error {
	if g.ServerURL == "" {
		return errors.New("EVOLUTION_SERVER_URL must be set")
	}
	u, err := url.Parse(g.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("EVOLUTION_SERVER_URL must be an http(s) URL, got %q", g.ServerURL)
	}
	if strings.TrimSpace(g.Instance) == "" {
		return errors.New("EVOLUTION_INSTANCE must be set")
	}
	if len(g.APIKey) < 10 {
		return errors.New("EVOLUTION_API_KEY must be at least 10 characters")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
