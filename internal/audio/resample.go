package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float streams between sample rates. When the rates
// match it passes samples through untouched.
type Resampler struct {
	inRate  int
	outRate int
	r       resampling.Resampler
	scratch []float64
}

func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", inRate, outRate)
	}
	rs := &Resampler{inRate: inRate, outRate: outRate}
	if inRate == outRate {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	rs.r = r
	return rs, nil
}

// Passthrough reports whether no conversion takes place.
func (rs *Resampler) Passthrough() bool { return rs.r == nil }

// Process converts one block. Output length follows the rate ratio but can
// lag by the filter delay on the first calls.
func (rs *Resampler) Process(samples []float32) ([]float32, error) {
	if rs.r == nil {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}
	if cap(rs.scratch) < len(samples) {
		rs.scratch = make([]float64, len(samples))
	}
	in := rs.scratch[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}
	res, err := rs.r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", rs.inRate, rs.outRate, err)
	}
	out := make([]float32, len(res))
	for i, v := range res {
		out[i] = float32(v)
	}
	return out, nil
}
