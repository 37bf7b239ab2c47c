package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"whisper"},
	"tts":   {"coqui"},
	"vad":   {"silero"},
	"audio": {"discord", "webrtc"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Reactor
	if !kernelModeValid(cfg.Reactor.KernelMode) {
		errs = append(errs, fmt.Errorf("reactor.kernel_mode %q is invalid; valid values: active, onboarding", cfg.Reactor.KernelMode))
	}
	if cfg.Reactor.TickPeriodMS <= 0 {
		errs = append(errs, fmt.Errorf("reactor.tick_period_ms must be positive, got %d", cfg.Reactor.TickPeriodMS))
	}
	if cfg.Reactor.PlannerTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("reactor.planner_timeout_ms must be positive, got %d", cfg.Reactor.PlannerTimeoutMS))
	}
	if cfg.Reactor.SafeMode && cfg.Reactor.PermissiveMode {
		errs = append(errs, errors.New("reactor.safe_mode and reactor.permissive_mode are mutually exclusive"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	if cfg.Providers.Planner.BaseURL == "" {
		errs = append(errs, errors.New("providers.planner.base_url is required"))
	}

	// Long-term semantic store backend
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; the long-term semantic store falls back to the file-backed store alone")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
