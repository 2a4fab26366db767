package tts

import (
	"context"
	"encoding/base64"
	"math"

	"github.com/ent0n29/agenthub/internal/audio"
	"github.com/ent0n29/agenthub/internal/persona"
)

// Mock returns a short WAV tone whose length follows the text, so previews
// work without credentials.
type Mock struct{}

func (Mock) Name() string { return "mock" }

func (Mock) Synthesize(ctx context.Context, req Request) (Result, error) {
	req, err := prepare(req)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ms := 60 * len([]rune(req.Text))
	if ms > 3000 {
		ms = 3000
	}
	freq := 220.0
	if req.Gender == persona.GenderFemale {
		freq = 330
	}
	n := audio.OutputSampleRate * ms / 1000
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*freq*float64(i)/audio.OutputSampleRate))
	}
	wav := audio.EncodeWAV(audio.FloatToPCM16(samples), audio.OutputSampleRate)
	return Result{AudioBase64: base64.StdEncoding.EncodeToString(wav), Format: "audio/wav"}, nil
}
