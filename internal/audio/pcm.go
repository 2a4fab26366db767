package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
)

// Rates and frame size the realtime endpoint expects. Capture runs at 16 kHz
// in 4096-sample frames; synthesized speech arrives at 24 kHz.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	CaptureFrameSize = 4096
)

// MIME types sent alongside raw PCM payloads.
const (
	MIMEInputPCM  = "audio/pcm;rate=16000"
	MIMEOutputPCM = "audio/pcm;rate=24000"
)

var ErrOddLength = errors.New("pcm16 payload has odd length")

// FloatToPCM16 converts float samples in [-1, 1] to little-endian 16-bit PCM.
// Out-of-range samples are clipped.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := FloatToInt16(s)
		out[2*i] = byte(v)
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}

// FloatToInt16 scales a float sample by 32768 and clips it to the int16 range.
func FloatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// PCM16ToFloat decodes little-endian 16-bit PCM into floats via sample/32768.
func PCM16ToFloat(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// EncodeBase64PCM encodes float samples as base64 16-bit PCM, the form used on
// the wire for both directions.
func EncodeBase64PCM(samples []float32) string {
	return base64.StdEncoding.EncodeToString(FloatToPCM16(samples))
}

// DecodeBase64PCM reverses EncodeBase64PCM.
func DecodeBase64PCM(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 pcm: %w", err)
	}
	return PCM16ToFloat(raw)
}

// DurationMS returns the play time in milliseconds of n samples at rate.
func DurationMS(n, rate int) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(n) * 1000 / int64(rate)
}
