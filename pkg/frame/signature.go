package frame

import "math"

// Signature is an ordered run of tones marking a transmission boundary.
// Every tone sits exactly on both the text and the voice grid, so the
// receiver can match it after quantizing.
type Signature []float64

var (
	Start       = Signature{2000, 2500, 3000}
	End         = Signature{3000, 2500, 2000}
	VoiceMarker = Signature{4000, 4500, 5000}
)

// Near reports whether freq is within tolerance of the i-th tone.
func (s Signature) Near(i int, freq, tolerance float64) bool {
	return i >= 0 && i < len(s) && math.Abs(freq-s[i]) <= tolerance
}

func (s Signature) Tones(d Timing) []Tone {
	tones := make([]Tone, len(s))
	for i, f := range s {
		tones[i] = Tone{Frequency: f, Duration: d.Signature}
	}
	return tones
}
