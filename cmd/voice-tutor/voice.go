package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/sjawhar/voice-tutor/internal/audio"
	"github.com/sjawhar/voice-tutor/internal/call"
	"github.com/sjawhar/voice-tutor/internal/config"
	"github.com/sjawhar/voice-tutor/internal/dialogue"
	"github.com/sjawhar/voice-tutor/internal/llm"
	"github.com/sjawhar/voice-tutor/internal/playback"
	"github.com/sjawhar/voice-tutor/internal/recognition"
	"github.com/sjawhar/voice-tutor/internal/tutor"
)

// openAISpeechRate is the fixed rate of OpenAI's raw PCM speech output.
const openAISpeechRate = 24000

func clientFactory(cfg config.Config) tutor.ClientFactory {
	return func(provider, model string, opts ...llm.Option) (llm.Client, error) {
		if provider == "azure" {
			opts = append(opts, llm.WithBaseURL(cfg.AzureEndpoint))
		}
		return llm.NewClient(provider, cfg.APIKeyFor(provider), model, opts...)
	}
}

// voiceStack owns the local audio devices and the collaborators a call needs.
type voiceStack struct {
	Deps       call.Deps
	sampleRate int
	mic        *audio.Mic
}

func newVoiceStack(cfg config.Config, factory tutor.ClientFactory, events call.EventBroadcaster) (*voiceStack, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, errors.New("deepgram API key not configured")
	}

	provider, model, err := llm.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	client, err := factory(provider, model, llm.WithTemperature(cfg.Temperature), llm.WithMaxTokens(cfg.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	recognition.Init()
	if err := audio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio: %w", err)
	}
	mic, err := audio.OpenMic(cfg.SampleRateCandidates(), 0, func(format string, args ...any) {
		log.Printf("warning: "+format, args...)
	})
	if err != nil {
		_ = audio.Terminate()
		return nil, err
	}
	log.Printf("microphone ready at %d Hz", mic.SampleRate())

	var (
		synth       playback.Synthesizer
		speakerRate = cfg.SpeakerSampleRate
	)
	switch cfg.TTSProvider {
	case "deepgram":
		synth = playback.NewDeepgramSynthesizer(cfg.DeepgramAPIKey, speakerRate)
	default:
		synth = playback.NewOpenAISynthesizer(cfg.TTSAPIKey(), "")
		speakerRate = openAISpeechRate
	}

	logger := slog.Default()
	return &voiceStack{
		Deps: call.Deps{
			Recognizer: recognition.NewDeepgram(cfg.DeepgramAPIKey, mic, logger),
			Playback:   playback.NewController(synth, audio.NewSpeaker(speakerRate), cfg.Voice, logger),
			Generator:  dialogue.NewDispatcher(client, dialogue.WithTimeout(cfg.ParsedGenerationTimeout()), dialogue.WithLogger(logger)),
			Events:     events,
			Logger:     logger,
		},
		sampleRate: mic.SampleRate(),
		mic:        mic,
	}, nil
}

func (v *voiceStack) CallConfig(cfg config.Config) call.Config {
	return call.Config{
		Topic:          cfg.DefaultTopic,
		Language:       cfg.Language,
		SilenceTimeout: cfg.ParsedSilenceTimeout(),
		SampleRate:     v.sampleRate,
		ContextWindow:  cfg.ContextWindow,
		Greeting:       cfg.Greeting,
	}
}

// Close must only be called once no call is live.
func (v *voiceStack) Close() {
	_ = v.mic.Close()
	_ = audio.Terminate()
}
