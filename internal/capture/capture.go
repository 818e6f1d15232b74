// Package capture delivers live microphone audio to the analysis core via
// PortAudio. It stands in for the device's I2S interrupt: the stream callback
// plays the producer role and must touch nothing but the engine's intake.
package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/luminode/beatcore/internal/config"
)

// BlockHandler receives each captured block. The slice is only valid for the
// duration of the call.
type BlockHandler func(samples []int16)

// Stream wraps a mono PortAudio input stream at the core sample rate.
type Stream struct {
	stream *portaudio.Stream
}

// Open initialises PortAudio and opens the default input device. Close must
// be called to release it.
func Open(handler BlockHandler) (*Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialise portaudio: %w", err)
	}

	s := &Stream{}
	stream, err := portaudio.OpenDefaultStream(
		1, 0, // mono in, no output
		float64(config.SampleRate),
		config.MaxBlockSamples,
		func(in []int16) {
			handler(in)
		},
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// Start begins capture; the handler fires from PortAudio's callback thread.
func (s *Stream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

// Close stops the stream and tears down PortAudio.
func (s *Stream) Close() error {
	err := s.stream.Close()
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("close capture: %w", err)
	}
	return nil
}
