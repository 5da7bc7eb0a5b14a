package config

import (
	"strings"
	"testing"
	"time"
)

// setValidEnv populates the minimum required variables.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GROUP_ID", "5544999999999@g.us")
	t.Setenv("EVOLUTION_SERVER_URL", "http://evolution:8080")
	t.Setenv("EVOLUTION_INSTANCE", "paresiga")
	t.Setenv("EVOLUTION_API_KEY", "0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("gin mode = %q", cfg.GinMode)
	}
	if cfg.Timezone != "America/Sao_Paulo" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if cfg.Weather.UpdateInterval != 30*time.Minute {
		t.Fatalf("weather interval = %v", cfg.Weather.UpdateInterval)
	}
	if cfg.Weather.HotAbove != 35 || cfg.Weather.ColdBelow != 10 {
		t.Fatalf("thresholds = %v/%v", cfg.Weather.HotAbove, cfg.Weather.ColdBelow)
	}
	if !cfg.OTEL.Insecure || cfg.OTEL.Enabled {
		t.Fatalf("otel defaults = %+v", cfg.OTEL)
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")
	t.Setenv("EVOLUTION_SERVER_URL", "http://evolution:8080/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("gin mode = %q", cfg.GinMode)
	}
	if strings.HasSuffix(cfg.Gateway.ServerURL, "/") {
		t.Fatalf("server url not trimmed: %q", cfg.Gateway.ServerURL)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"missing group id", "GROUP_ID", ""},
		{"group id without suffix", "GROUP_ID", "5544999999999"},
		{"group id wrong suffix", "GROUP_ID", "5544999999999@s.whatsapp.net"},
		{"group id non-numeric", "GROUP_ID", "abc@g.us"},
		{"gateway url missing", "EVOLUTION_SERVER_URL", ""},
		{"gateway url bad scheme", "EVOLUTION_SERVER_URL", "ftp://evolution:21"},
		{"gateway url no host", "EVOLUTION_SERVER_URL", "http://"},
		{"instance missing", "EVOLUTION_INSTANCE", ""},
		{"api key too short", "EVOLUTION_API_KEY", "short"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"negative rate", "RATE_RPS", "-1"},
		{"zero burst", "RATE_BURST", "0"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestGroupIDWithHyphenSuffix(t *testing.T) {
	setValidEnv(t)
	t.Setenv("GROUP_ID", "5544999999999-1612345678@g.us")

	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestWeatherCityRequiredWithKey(t *testing.T) {
	setValidEnv(t)
	t.Setenv("WEATHER_API_KEY", "abc")
	t.Setenv("WEATHER_CITY_ID", " ")

	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
