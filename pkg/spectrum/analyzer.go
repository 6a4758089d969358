package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analyzer turns a block of samples into a byte scaled magnitude spectrum:
// Hann window, real FFT, |X|/Size in decibels, mapped from
// [MinDecibels, MaxDecibels] onto 0..255.
type Analyzer struct {
	SampleRate  float64
	Size        int
	MinDecibels float64
	MaxDecibels float64
}

const (
	DefaultSize        = 2048
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = 0.0
)

func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{
		SampleRate:  sampleRate,
		Size:        DefaultSize,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
	}
}

// Analyze uses the last Size samples, the block is zero padded in front if
// it is shorter.
func (a *Analyzer) Analyze(samples []float64) Snapshot {
	buf := make([]float64, a.Size)
	if len(samples) > a.Size {
		samples = samples[len(samples)-a.Size:]
	}
	copy(buf[a.Size-len(samples):], samples)

	window.Apply(buf, window.Hann)
	spectrum := fft.FFTReal(buf)

	mags := make([]uint8, a.Size/2)
	for k := range mags {
		mags[k] = a.scale(cmplx.Abs(spectrum[k]) / float64(a.Size))
	}
	return Snapshot{Magnitudes: mags, SampleRate: a.SampleRate}
}

func (a *Analyzer) scale(magnitude float64) uint8 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	v := 255 * (db - a.MinDecibels) / (a.MaxDecibels - a.MinDecibels)
	return uint8(max(0, min(255, v)))
}

// BinWidth is the frequency resolution of one snapshot bin.
func (a *Analyzer) BinWidth() float64 {
	return a.SampleRate / float64(a.Size)
}
