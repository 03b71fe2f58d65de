package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Speaker plays mono PCM16-LE audio on the default output device.
// Only one clip plays at a time; concurrent calls queue on the device.
type Speaker struct {
	mu              sync.Mutex
	sampleRate      int
	framesPerBuffer int
}

func NewSpeaker(sampleRate int) *Speaker {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &Speaker{sampleRate: sampleRate, framesPerBuffer: DefaultFramesPerBuffer}
}

func (s *Speaker) SampleRate() int { return s.sampleRate }

// Play blocks until the clip finished or ctx is cancelled. The output stream
// is opened for the clip and always closed before Play returns.
func (s *Speaker) Play(ctx context.Context, pcm []byte) (err error) {
	samples := Samples(pcm)
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buffer := make([]int16, s.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.sampleRate), len(buffer), &buffer)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output stream: %w", closeErr)
		}
	}()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer func() {
		if stopErr := stream.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop output stream: %w", stopErr)
		}
	}()

	offset := 0
	for offset < len(samples) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		offset = fillFrame(buffer, samples, offset)
		if err := stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				continue
			}
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}
