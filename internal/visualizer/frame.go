package visualizer

import "fmt"

// MutedColor is drawn while no session is connected.
const MutedColor = "#4b5563"

// Frame is one rendered visualisation. Heights are left to right, one per
// frequency bin.
type Frame struct {
	Connected bool      `json:"connected"`
	Mean      float64   `json:"mean"`
	Color     string    `json:"color"`
	BarWidth  float64   `json:"bar_width"`
	Gap       float64   `json:"gap"`
	Heights   []float64 `json:"heights"`
}

const barGap = 1.0

// BarWidth is the canvas width split across bins, widened 2.5x so the
// low-frequency half fills the canvas.
func BarWidth(canvasWidth float64, bins int) float64 {
	if bins <= 0 {
		return 0
	}
	return canvasWidth / float64(bins) * 2.5
}

// Mean returns the average bin value, 0..255.
func Mean(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0
	for _, v := range data {
		sum += int(v)
	}
	return float64(sum) / float64(len(data))
}

// Color maps mean energy to an HSL colour; hue runs 240..300 and lightness
// 40..70 as energy rises.
func Color(mean float64) string {
	e := mean / 255
	hue := 240 + e*60
	light := 40 + e*30
	return fmt.Sprintf("hsl(%.0f, 90%%, %.0f%%)", hue, light)
}

// Compute builds a connected frame from byte frequency data.
func Compute(data []byte, canvasWidth float64) Frame {
	mean := Mean(data)
	heights := make([]float64, len(data))
	for i, v := range data {
		heights[i] = float64(v) / 2
	}
	return Frame{
		Connected: true,
		Mean:      mean,
		Color:     Color(mean),
		BarWidth:  BarWidth(canvasWidth, len(data)),
		Gap:       barGap,
		Heights:   heights,
	}
}

// Decay halves every height of prev and paints it muted. Heights below one
// pixel snap to zero; done reports whether all bars are flat.
func Decay(prev Frame) (next Frame, done bool) {
	next = Frame{
		Color:    MutedColor,
		BarWidth: prev.BarWidth,
		Gap:      prev.Gap,
		Heights:  make([]float64, len(prev.Heights)),
	}
	done = true
	for i, h := range prev.Heights {
		v := h / 2
		if v < 1 {
			v = 0
		}
		next.Heights[i] = v
		if v > 0 {
			done = false
		}
	}
	return next, done
}
