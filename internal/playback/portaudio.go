//go:build portaudio

package playback

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const speakerFramesPerBuffer = 480

// PortAudioSink plays rendered output on the default output device.
type PortAudioSink struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
	closed bool
}

func NewPortAudioSink(rate int) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	buf := make([]float32, speakerFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return &PortAudioSink{stream: stream, buf: buf}, nil
}

func (s *PortAudioSink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for len(samples) > 0 {
		n := copy(s.buf, samples)
		clear(s.buf[n:])
		samples = samples[n:]
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Stop()
	err := s.stream.Close()
	_ = portaudio.Terminate()
	return err
}
