package audio

// Framer regroups arbitrarily sized sample blocks into fixed-size frames.
// It is not safe for concurrent use.
type Framer struct {
	size int
	buf  []float32
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = CaptureFrameSize
	}
	return &Framer{size: size, buf: make([]float32, 0, size)}
}

// Size returns the frame length in samples.
func (f *Framer) Size() int { return f.size }

// Push appends samples and calls emit once per completed frame. The slice
// handed to emit is owned by the callee.
func (f *Framer) Push(samples []float32, emit func([]float32)) {
	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.buf)
			f.buf = f.buf[:0]
			emit(frame)
		}
	}
}

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int { return len(f.buf) }

// Reset drops any partial frame.
func (f *Framer) Reset() { f.buf = f.buf[:0] }
