//go:build !portaudio

package playback

import "errors"

// PortAudioSink is unavailable unless built with -tags portaudio.
type PortAudioSink struct{}

func NewPortAudioSink(int) (*PortAudioSink, error) {
	return nil, errors.New("playback: built without portaudio support (use -tags portaudio)")
}

func (*PortAudioSink) Write([]float32) error { return nil }

func (*PortAudioSink) Close() error { return nil }
