package modem

import (
	"math"
	"time"

	"Aethertone/pkg/frame"
)

type CarrierConfig struct {
	Amplitude  float64
	Freq       float64
	Phase      float64
	SampleRate float64
	Size       int
}

func (p CarrierConfig) New() []float64 {
	signal := make([]float64, p.Size)
	for i := range signal {
		t := float64(i) / p.SampleRate
		signal[i] = p.Amplitude * math.Sin(2*math.Pi*p.Freq*t+p.Phase)
	}
	return signal
}

// Modulator renders tones as int32 PCM at SampleRate, shaped by Envelope so
// every tone starts and ends at silence.
type Modulator struct {
	SampleRate float64
	Envelope   frame.Envelope
}

func NewModulator(sampleRate float64) Modulator {
	return Modulator{SampleRate: sampleRate, Envelope: frame.DefaultEnvelope}
}

// Samples is the number of samples a tone of duration d occupies.
func (m Modulator) Samples(d time.Duration) int {
	return int(math.Round(d.Seconds() * m.SampleRate))
}

func (m Modulator) Modulate(tone frame.Tone) []int32 {
	signal := CarrierConfig{
		Amplitude:  1,
		Freq:       tone.Frequency,
		SampleRate: m.SampleRate,
		Size:       m.Samples(tone.Duration),
	}.New()

	for i := range signal {
		t := time.Duration(float64(i) / m.SampleRate * float64(time.Second))
		signal[i] *= m.Envelope.At(t, tone.Duration)
	}
	return Float64ToInt32(signal)
}

// ModulateAll concatenates the rendered tones, for writing a whole plan to a
// file.
func (m Modulator) ModulateAll(tones []frame.Tone) []int32 {
	var total int
	for _, t := range tones {
		total += m.Samples(t.Duration)
	}
	out := make([]int32, 0, total)
	for _, t := range tones {
		out = append(out, m.Modulate(t)...)
	}
	return out
}
