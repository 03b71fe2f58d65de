package playback

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer requests raw 24kHz PCM16 speech from OpenAI.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
}

func NewOpenAISynthesizer(apiKey, baseURL string) *OpenAISynthesizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAISynthesizer{client: openai.NewClientWithConfig(cfg), model: openai.TTSModel1}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read openai speech: %w", err)
	}
	return pcm, nil
}
