// Package config provides the configuration schema, loader, and provider
// registry for the cognitive reactor.
package config

// Config is the root configuration structure for the reactor process.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reactor   ReactorConfig   `yaml:"reactor"`
	Providers ProvidersConfig `yaml:"providers"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// ServerConfig holds process-wide logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the listen address for the /metrics (Prometheus) and
	// /healthz endpoints. Empty disables the HTTP server entirely.
	MetricsAddr string `yaml:"metrics_addr"`

	// ServiceName identifies this process in exported telemetry. Defaults
	// to "reactorcore" when empty.
	ServiceName string `yaml:"service_name"`
}

// LogLevel is the set of recognised log verbosity names.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError, "":
		return true
	default:
		return false
	}
}

// ReactorConfig holds the tick-driven kernel's own runtime parameters — the
// concerns no sensor/provider owns.
type ReactorConfig struct {
	// TickPeriodMS is the fixed wall-clock interval between ticks, in
	// milliseconds. The ticker's skip-don't-catch-up policy uses this to
	// decide when a tick was missed outright.
	TickPeriodMS int `yaml:"tick_period_ms"`

	// PlannerTimeoutMS bounds every planner dispatch; exceeding it collapses
	// the proposal to DoNothing.
	PlannerTimeoutMS int `yaml:"planner_timeout_ms"`

	// KernelMode selects whether the reactor starts accepting input
	// immediately ("active") or discards it until onboarding completes
	// ("onboarding").
	KernelMode string `yaml:"kernel_mode"`

	// SafeMode, when true, suppresses every memory-consolidator delta.
	SafeMode bool `yaml:"safe_mode"`

	// PermissiveMode relaxes memory promotion from 2 to 3 reinforcements.
	PermissiveMode bool `yaml:"permissive_mode"`

	// SemanticStorePath is where promoted long-term memory is persisted as
	// JSON. Empty disables persistence (in-memory only).
	SemanticStorePath string `yaml:"semantic_store_path"`

	// VoiceChannelID is the platform-specific channel the audio provider
	// connects to. Empty runs the reactor text-only — no audio capture or
	// playback goroutines are started.
	VoiceChannelID string `yaml:"voice_channel_id"`

	// OnboardingMarkerPath is where the onboarding-completion marker is
	// read and persisted. Empty disables onboarding entirely — the
	// reactor starts directly in KernelActive.
	OnboardingMarkerPath string `yaml:"onboarding_marker_path"`

	// AlphaMarkerPath is where the alpha-access grant is read. The process
	// refuses to start if the file is absent or declares enabled=false.
	AlphaMarkerPath string `yaml:"alpha_marker_path"`
}

// KernelModeActive and KernelModeOnboarding are the valid ReactorConfig.KernelMode values.
const (
	KernelModeActive     = "active"
	KernelModeOnboarding = "onboarding"
)

// kernelModeValid reports whether m is a recognised kernel mode name (or empty,
// which defaults to active).
func kernelModeValid(m string) bool {
	switch m {
	case KernelModeActive, KernelModeOnboarding, "":
		return true
	default:
		return false
	}
}

// ProvidersConfig declares which provider implementation to use for each
// sensor/output stage. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	// Planner is the out-of-process LLM the planner bridge dispatches to.
	// Only BaseURL is used — the bridge speaks its own minimal prompt/
	// JSON-schema protocol directly, not through a named provider backend.
	Planner ProviderEntry `yaml:"planner"`

	STT   ProviderEntry `yaml:"stt"`
	TTS   ProviderEntry `yaml:"tts"`
	VAD   ProviderEntry `yaml:"vad"`
	Audio ProviderEntry `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// MemoryConfig holds settings for the optional PostgreSQL-backed long-term
// semantic store, an alternative to the file-based store the memory
// consolidator otherwise always uses.
type MemoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the promoted-
	// hypothesis table. Empty disables it — the consolidator falls back to
	// its file-backed store (or runs in-memory if that is also unset).
	PostgresDSN string `yaml:"postgres_dsn"`
}
