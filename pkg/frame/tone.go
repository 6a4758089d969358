package frame

import (
	"fmt"
	"time"
)

type Tone struct {
	Frequency float64
	Duration  time.Duration
}

func (t Tone) String() string {
	return fmt.Sprintf("%.0fHz/%v", t.Frequency, t.Duration)
}

// Timing holds the fixed symbol durations of the protocol.
type Timing struct {
	Signature       time.Duration
	Text            time.Duration
	Voice           time.Duration
	MaxVoiceSamples int
}

var DefaultTiming = Timing{
	Signature:       100 * time.Millisecond,
	Text:            50 * time.Millisecond,
	Voice:           20 * time.Millisecond,
	MaxVoiceSamples: 100,
}

// Envelope ramps a tone from silence to Gain over Attack and back to
// silence by the end of the tone. Both ramps are inside the tone duration.
type Envelope struct {
	Attack time.Duration
	Gain   float64
}

var DefaultEnvelope = Envelope{
	Attack: 10 * time.Millisecond,
	Gain:   0.3,
}

// At returns the gain t into a tone lasting d.
func (e Envelope) At(t, d time.Duration) float64 {
	if t < 0 || t >= d || d <= 0 {
		return 0
	}
	attack := e.Attack
	if attack > d/2 {
		attack = d / 2
	}
	if attack > 0 && t < attack {
		return e.Gain * float64(t) / float64(attack)
	}
	return e.Gain * float64(d-t) / float64(d-attack)
}

// Airtime is the total duration of a tone sequence.
func Airtime(tones []Tone) time.Duration {
	var total time.Duration
	for _, t := range tones {
		total += t.Duration
	}
	return total
}
