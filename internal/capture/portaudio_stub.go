//go:build !portaudio

package capture

import "errors"

// NewPortAudioDevice is unavailable unless built with -tags portaudio.
func NewPortAudioDevice(int) (Device, error) {
	return nil, errors.New("capture: built without portaudio support (use -tags portaudio)")
}
