// Command reactor is the entry point for the cognitive reactor process: it
// loads configuration, wires the configured providers, builds the
// orchestrator and its driver, and runs the tick loop until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/reactorcore/internal/alpha"
	"github.com/MrWong99/reactorcore/internal/config"
	"github.com/MrWong99/reactorcore/internal/driver"
	"github.com/MrWong99/reactorcore/internal/observe"
	"github.com/MrWong99/reactorcore/internal/onboarding"
	"github.com/MrWong99/reactorcore/internal/reactor"
	"github.com/MrWong99/reactorcore/internal/reactor/memconsolidate"
	"github.com/MrWong99/reactorcore/internal/reactor/planner"
	"github.com/MrWong99/reactorcore/internal/reactor/vad"
	"github.com/MrWong99/reactorcore/pkg/audio"
	"github.com/MrWong99/reactorcore/pkg/memory/postgres"
	"github.com/MrWong99/reactorcore/pkg/provider/stt"
	"github.com/MrWong99/reactorcore/pkg/provider/tts"
	providervad "github.com/MrWong99/reactorcore/pkg/provider/vad"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
	"github.com/MrWong99/reactorcore/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "reactor: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "reactor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("reactor starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"tick_period_ms", cfg.Reactor.TickPeriodMS,
	)

	// ── Observability ─────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: cfg.Server.ServiceName,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("error shutting down telemetry providers", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped unexpectedly", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	// ── Alpha gate ────────────────────────────────────────────────────
	// The process refuses to run at all without a granted, enabled marker.
	if cfg.Reactor.AlphaMarkerPath == "" {
		slog.Error("reactor.alpha_marker_path is not configured; refusing to start")
		return 1
	}
	if _, err := alpha.Check(cfg.Reactor.AlphaMarkerPath); err != nil {
		slog.Error("alpha access not granted", "path", cfg.Reactor.AlphaMarkerPath, "error", err)
		return 1
	}

	// ── Kernel mode — onboarding overrides config until its marker says done ──
	mode := parseKernelMode(cfg.Reactor.KernelMode)
	if cfg.Reactor.OnboardingMarkerPath != "" {
		marker, err := onboarding.Load(cfg.Reactor.OnboardingMarkerPath)
		if err != nil {
			slog.Error("failed to load onboarding marker", "error", err)
			return 1
		}
		if !marker.Completed {
			mode = reactortypes.KernelOnboarding
		}
	}

	// ── Provider registry ─────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "error", err)
		return 1
	}
	if cfg.Providers.Planner.BaseURL == "" {
		slog.Error("providers.planner.base_url is required but was not configured")
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Core wiring ───────────────────────────────────────────────────
	events := driver.NewEventChannel()

	plannerTimeout := time.Duration(cfg.Reactor.PlannerTimeoutMS) * time.Millisecond
	bridge := planner.New(cfg.Providers.Planner.BaseURL, events, planner.WithTimeout(plannerTimeout))

	reactorOpts := []reactor.Option{reactor.WithKernelMode(mode)}
	if providers.VAD != nil {
		session, err := providers.VAD.NewSession(providervad.Config{
			SampleRate:       48000,
			FrameSizeMs:      20,
			SpeechThreshold:  0.5,
			SilenceThreshold: 0.35,
		})
		if err != nil {
			slog.Error("failed to open vad session", "error", err)
			return 1
		}
		reactorOpts = append(reactorOpts, reactor.WithVADMonitor(vad.New(session)))
	}
	memCfg := memconsolidate.Config{
		SafeMode:       cfg.Reactor.SafeMode,
		PermissiveMode: cfg.Reactor.PermissiveMode,
	}
	reactorOpts = append(reactorOpts, reactor.WithMemoryConfig(memCfg))
	switch {
	case cfg.Memory.PostgresDSN != "":
		store, err := postgres.NewStore(context.Background(), cfg.Memory.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres semantic store", "error", err)
			return 1
		}
		defer store.Close()
		reactorOpts = append(reactorOpts, reactor.WithSemanticStore(store))
	case cfg.Reactor.SemanticStorePath != "":
		reactorOpts = append(reactorOpts, reactor.WithSemanticStore(memconsolidate.NewFileSemanticStore(cfg.Reactor.SemanticStorePath)))
	}

	react := reactor.New(bridge, reactorOpts...)

	var sink driver.EffectSink = driver.LoggingSink{}
	var conn audio.Connection
	if providers.Audio != nil && providers.STT != nil && providers.TTS != nil && cfg.Reactor.VoiceChannelID != "" {
		conn, sink = wireAudio(events, providers, cfg)
	}

	tickPeriod := time.Duration(cfg.Reactor.TickPeriodMS) * time.Millisecond
	d := driver.New(react, sink, tickPeriod, events, driver.WithMetrics(metrics))
	if conn != nil {
		conn.OnParticipantChange(driver.OnParticipantJoin(events, conn))
	}

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Run(gctx)
		return nil
	})

	slog.Info("reactor ready — press Ctrl+C to shut down", "kernel_mode", mode)
	_ = g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	d.Stop()
	bridge.Abort()
	if closer, ok := sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("error closing playback sink", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("error disconnecting audio platform", "error", err)
		}
	}
	if err := react.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func parseKernelMode(s string) reactortypes.KernelMode {
	if s == config.KernelModeOnboarding {
		return reactortypes.KernelOnboarding
	}
	return reactortypes.KernelActive
}

// wireAudio connects the configured audio platform to the voice channel and
// returns both the live connection (for shutdown) and an EffectSink backed
// by real ASR/TTS providers instead of LoggingSink. Participant-join capture
// goroutines are wired by the caller once the connection is known good.
func wireAudio(events chan reactortypes.Event, providers *Providers, cfg *config.Config) (audio.Connection, driver.EffectSink) {
	conn, err := providers.Audio.Connect(context.Background(), cfg.Reactor.VoiceChannelID)
	if err != nil {
		slog.Error("failed to connect audio platform", "channel_id", cfg.Reactor.VoiceChannelID, "error", err)
		return nil, driver.LoggingSink{}
	}

	asrSink := &driver.ASRSink{
		Events: events,
		STT:    providers.STT,
		Config: stt.StreamConfig{SampleRate: 48000, Channels: 1},
	}
	playbackSink := driver.NewPlaybackSink(events, providers.TTS, types.VoiceProfile{}, conn.OutputStream())

	return conn, multiSink{asr: asrSink, playback: playbackSink}
}

// multiSink routes each effect to whichever concrete sink handles it,
// falling back to LoggingSink for the rest.
type multiSink struct {
	driver.LoggingSink
	asr      *driver.ASRSink
	playback *driver.PlaybackSink
}

func (m multiSink) SpawnAudio(e reactortypes.SpawnAudioEffect) { m.playback.SpawnAudio(e) }
func (m multiSink) StopAudio(e reactortypes.StopAudioEffect)   { m.playback.StopAudio(e) }
func (m multiSink) RequestTranscription(e reactortypes.RequestTranscriptionEffect, pcm []byte) {
	m.asr.RequestTranscription(e, pcm)
}

// Close releases the playback sink's mixer dispatch goroutine.
func (m multiSink) Close() error { return m.playback.Close() }

// ── Provider wiring ────────────────────────────────────────────────────

// Providers holds every instantiated provider the reactor may use. Fields
// are nil when not configured.
//
// There is no Planner entry here: the planner bridge (internal/reactor/planner)
// speaks its own minimal prompt/JSON-schema protocol directly over HTTP to
// cfg.Providers.Planner.BaseURL — it was never built from an llm.Provider.
type Providers struct {
	STT   stt.Provider
	TTS   tts.Provider
	VAD   providervad.Engine
	Audio audio.Platform
}

func buildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "stt", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		} else {
			ps.STT = p
			slog.Info("provider created", "kind", "stt", "name", name)
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "tts", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		} else {
			ps.TTS = p
			slog.Info("provider created", "kind", "tts", "name", name)
		}
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "vad", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		} else {
			ps.VAD = p
			slog.Info("provider created", "kind", "vad", "name", name)
		}
	}

	if name := cfg.Providers.Audio.Name; name != "" {
		p, err := reg.CreateAudio(cfg.Providers.Audio)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "audio", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create audio provider %q: %w", name, err)
		} else {
			ps.Audio = p
			slog.Info("provider created", "kind", "audio", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        reactor — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Planner", cfg.Providers.Planner.Name, cfg.Providers.Planner.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	printProvider("Audio", cfg.Providers.Audio.Name, "")
	fmt.Printf("║  Kernel mode     : %-19s ║\n", cfg.Reactor.KernelMode)
	fmt.Printf("║  Tick period (ms): %-19d ║\n", cfg.Reactor.TickPeriodMS)
	fmt.Printf("║  Safe mode       : %-19t ║\n", cfg.Reactor.SafeMode)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ──────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
