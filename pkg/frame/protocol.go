package frame

import (
	"errors"
	"fmt"
	"strings"

	"Aethertone/pkg/codec"
)

var ErrInputRejected = errors.New("input rejected")

const DefaultMarkerTolerance = 100.0

// Protocol turns payloads into complete tone plans. It holds no state.
type Protocol struct {
	Timing          Timing
	MarkerTolerance float64 // how close a tone must be to a voice marker tone, in Hz
}

var DefaultProtocol = Protocol{
	Timing:          DefaultTiming,
	MarkerTolerance: DefaultMarkerTolerance,
}

// TextPlan returns START, one tone per character and END. The whole text is
// checked before a plan is returned.
func (p Protocol) TextPlan(text string) ([]Tone, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInputRejected)
	}

	for i := 0; i < len(text); i++ {
		if !codec.IsPrintable(text[i]) {
			return nil, fmt.Errorf("%w: byte 0x%02x at %d is not printable ascii", ErrInputRejected, text[i], i)
		}
	}

	if p.opensWithMarker(text) {
		return nil, fmt.Errorf("%w: text %q opens with the voice marker sequence", ErrInputRejected, text)
	}

	tones := make([]Tone, 0, len(Start)+len(text)+len(End))
	tones = append(tones, Start.Tones(p.Timing)...)
	for i := 0; i < len(text); i++ {
		tones = append(tones, Tone{Frequency: codec.EncodeText(text[i]), Duration: p.Timing.Text})
	}
	tones = append(tones, End.Tones(p.Timing)...)
	return tones, nil
}

// VoicePlan returns START, the voice marker, one tone per sample and END.
// Only the first MaxVoiceSamples samples are sent.
func (p Protocol) VoicePlan(samples []float64) ([]Tone, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no recorded samples", ErrInputRejected)
	}
	if p.Timing.MaxVoiceSamples > 0 && len(samples) > p.Timing.MaxVoiceSamples {
		samples = samples[:p.Timing.MaxVoiceSamples]
	}

	tones := make([]Tone, 0, len(Start)+len(VoiceMarker)+len(samples)+len(End))
	tones = append(tones, Start.Tones(p.Timing)...)
	tones = append(tones, VoiceMarker.Tones(p.Timing)...)
	for _, s := range samples {
		tones = append(tones, Tone{Frequency: codec.EncodeVoiceSample(s), Duration: p.Timing.Voice})
	}
	tones = append(tones, End.Tones(p.Timing)...)
	return tones, nil
}

// opensWithMarker reports whether the leading characters would be heard as
// the whole voice marker. Characters near the tone just matched extend it,
// the same way the receiver merges a tone split by jitter.
func (p Protocol) opensWithMarker(text string) bool {
	k := 0
	for i := 0; i < len(text); i++ {
		f := codec.EncodeText(text[i])
		switch {
		case k > 0 && VoiceMarker.Near(k-1, f, p.MarkerTolerance):
		case VoiceMarker.Near(k, f, p.MarkerTolerance):
			k++
			if k == len(VoiceMarker) {
				return true
			}
		default:
			return false
		}
	}
	return false
}
