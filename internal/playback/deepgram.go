package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speakapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"
)

const DefaultDeepgramVoice = "aura-asteria-en"

var errNoDeepgramClient = errors.New("deepgram speak: client not configured")

// DeepgramSynthesizer asks Deepgram's speak API for raw linear16 audio.
type DeepgramSynthesizer struct {
	client     *speakapi.Client
	sampleRate int
}

func NewDeepgramSynthesizer(apiKey string, sampleRate int) *DeepgramSynthesizer {
	return newDeepgramSynthesizer(apiKey, "", sampleRate)
}

// newDeepgramSynthesizer targets host instead of the public API when set.
func newDeepgramSynthesizer(apiKey, host string, sampleRate int) *DeepgramSynthesizer {
	s := &DeepgramSynthesizer{sampleRate: sampleRate}
	// NewREST returns nil when no key is available.
	if rest := speak.NewREST(apiKey, &interfaces.ClientOptions{Host: host}); rest != nil {
		s.client = speakapi.New(rest)
	}
	return s
}

func (s *DeepgramSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if s.client == nil {
		return nil, errNoDeepgramClient
	}
	if voice == "" || !strings.HasPrefix(voice, "aura") {
		voice = DefaultDeepgramVoice
	}

	var buf interfaces.RawResponse
	if _, err := s.client.ToStream(ctx, text, &interfaces.SpeakOptions{
		Model:      voice,
		Encoding:   "linear16",
		Container:  "none",
		SampleRate: s.sampleRate,
	}, &buf); err != nil {
		return nil, fmt.Errorf("deepgram speak: %w", err)
	}
	return buf.Bytes(), nil
}
