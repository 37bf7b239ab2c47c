package main

import (
	"fmt"

	"github.com/MrWong99/reactorcore/internal/config"
	"github.com/MrWong99/reactorcore/pkg/audio"
	"github.com/MrWong99/reactorcore/pkg/audio/discord"
	"github.com/MrWong99/reactorcore/pkg/audio/webrtc"
	"github.com/MrWong99/reactorcore/pkg/provider/stt"
	"github.com/MrWong99/reactorcore/pkg/provider/stt/whisper"
	"github.com/MrWong99/reactorcore/pkg/provider/tts"
	"github.com/MrWong99/reactorcore/pkg/provider/tts/coqui"
	"github.com/bwmarrin/discordgo"
)

// registerBuiltinProviders wires every concrete provider implementation this
// build ships into reg under the name an operator selects via
// config.ProvidersConfig. A provider kind with no matching name registered
// (VAD has none — no standalone VAD backend ships in this build) simply
// returns [config.ErrProviderNotRegistered] from its Create call, which
// buildProviders already treats as "not configured" rather than fatal.
//
// There is no planner or embeddings registration here: the planner bridge
// (internal/reactor/planner) talks directly to providers.planner.base_url
// over its own prompt/JSON-schema protocol, and nothing in the reactor
// consumes embeddings.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", newWhisperSTT)

	reg.RegisterTTS("coqui", newCoquiTTS)

	reg.RegisterAudio("discord", newDiscordAudio)
	reg.RegisterAudio("webrtc", newWebRTCAudio)
}

func newWhisperSTT(entry config.ProviderEntry) (stt.Provider, error) {
	var opts []whisper.Option
	if entry.Model != "" {
		opts = append(opts, whisper.WithModel(entry.Model))
	}
	if lang, ok := stringOption(entry, "language"); ok {
		opts = append(opts, whisper.WithLanguage(lang))
	}
	return whisper.New(entry.BaseURL, opts...)
}

func newCoquiTTS(entry config.ProviderEntry) (tts.Provider, error) {
	var opts []coqui.Option
	if lang, ok := stringOption(entry, "language"); ok {
		opts = append(opts, coqui.WithLanguage(lang))
	}
	return coqui.New(entry.BaseURL, opts...)
}

func newDiscordAudio(entry config.ProviderEntry) (audio.Platform, error) {
	guildID, ok := stringOption(entry, "guild_id")
	if !ok || guildID == "" {
		return nil, fmt.Errorf("audio/discord: options.guild_id is required")
	}
	session, err := discordgo.New("Bot " + entry.APIKey)
	if err != nil {
		return nil, fmt.Errorf("audio/discord: create session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("audio/discord: open session: %w", err)
	}
	return discord.New(session, guildID), nil
}

func newWebRTCAudio(entry config.ProviderEntry) (audio.Platform, error) {
	var opts []webrtc.Option
	if servers, ok := entry.Options["stun_servers"].([]any); ok {
		urls := make([]string, 0, len(servers))
		for _, s := range servers {
			if str, ok := s.(string); ok {
				urls = append(urls, str)
			}
		}
		if len(urls) > 0 {
			opts = append(opts, webrtc.WithSTUNServers(urls...))
		}
	}
	return webrtc.New(opts...), nil
}

// stringOption reads a string-valued entry from a provider's free-form
// Options map, returning ok=false when absent or of the wrong type.
func stringOption(entry config.ProviderEntry, key string) (string, bool) {
	v, ok := entry.Options[key].(string)
	return v, ok
}
