// Package visualizer turns the audio reaching the output into per-frame bar
// graphs and a colour that tracks speech energy.
package visualizer

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyser defaults mirror a browser analyser node.
const (
	DefaultFFTSize     = 256
	defaultSmoothing   = 0.8
	defaultMinDecibels = -100.0
	defaultMaxDecibels = -30.0
)

// Analyser keeps the most recent FFTSize output samples and derives byte
// frequency data from them on demand.
type Analyser struct {
	size      int
	fft       *fourier.FFT
	window    []float64
	smoothing float64
	minDB     float64
	maxDB     float64

	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	scratch  []float64
	coeffs   []complex128
}

func NewAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < 32 || fftSize > 32768 || bits.OnesCount(uint(fftSize)) != 1 {
		return nil, fmt.Errorf("fft size %d must be a power of two in [32, 32768]", fftSize)
	}
	a := &Analyser{
		size:      fftSize,
		fft:       fourier.NewFFT(fftSize),
		window:    blackman(fftSize),
		smoothing: defaultSmoothing,
		minDB:     defaultMinDecibels,
		maxDB:     defaultMaxDecibels,
		ring:      make([]float64, fftSize),
		smoothed:  make([]float64, fftSize/2),
		scratch:   make([]float64, fftSize),
	}
	return a, nil
}

// BinCount is half the FFT size.
func (a *Analyser) BinCount() int { return a.size / 2 }

// Observe implements playback.Tap.
func (a *Analyser) Observe(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(samples) >= a.size {
		samples = samples[len(samples)-a.size:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % a.size
	}
}

// ByteFrequencyData fills dst (len BinCount) with smoothed magnitudes scaled
// to 0..255 between the decibel bounds.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	if len(dst) != a.BinCount() {
		dst = make([]byte, a.BinCount())
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < a.size; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	span := a.maxDB - a.minDB
	for k := range a.smoothed {
		mag := cmplxAbs(a.coeffs[k]) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		db := a.minDB
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - a.minDB) / span
		dst[k] = byte(math.Max(0, math.Min(255, v)))
	}
	return dst
}

// Reset clears buffered audio and smoothing state.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
