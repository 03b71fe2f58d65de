package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

const DefaultFramesPerBuffer = 1024

// Initialize must be called once before opening any device.
func Initialize() error { return portaudio.Initialize() }

func Terminate() error { return portaudio.Terminate() }

// Mic wraps PortAudio with a configurable buffer size.
type Mic struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
}

// NewMic opens a PortAudio capture stream with the given sample rate and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

// OpenMic tries each sample rate in order and returns the first device that opens.
func OpenMic(rates []int, framesPerBuffer int, logf func(string, ...any)) (*Mic, error) {
	var errs []error
	for _, rate := range rates {
		mic, err := NewMic(rate, framesPerBuffer)
		if err != nil {
			if logf != nil {
				logf("microphone open failed at %d Hz: %v", rate, err)
			}
			errs = append(errs, fmt.Errorf("%d Hz: %w", rate, err))
			continue
		}
		return mic, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("no sample rates to try")
	}
	return nil, fmt.Errorf("open microphone: %w", errors.Join(errs...))
}

func (m *Mic) SampleRate() int { return m.sampleRate }
func (m *Mic) Start() error    { return m.stream.Start() }
func (m *Mic) Stop() error     { return m.stream.Stop() }
func (m *Mic) Close() error    { return m.stream.Close() }

// Stream reads from the mic and writes PCM16-LE to w until an error or stop.
func (m *Mic) Stream(w io.Writer) error {
	out := make([]byte, len(m.buf)*2)
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		putSamples(out, m.buf)
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
}
