package frame

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"Aethertone/pkg/codec"
)

func frequencies(tones []Tone) []float64 {
	out := make([]float64, len(tones))
	for i, t := range tones {
		out[i] = t.Frequency
	}
	return out
}

func TestTextPlanOrder(t *testing.T) {
	tones, err := DefaultProtocol.TextPlan("AB")
	if err != nil {
		t.Fatal(err)
	}

	expected := []float64{2000, 2500, 3000, codec.EncodeText('A'), codec.EncodeText('B'), 3000, 2500, 2000}
	if got := frequencies(tones); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	for i, tone := range tones {
		want := DefaultTiming.Signature
		if i == 3 || i == 4 {
			want = DefaultTiming.Text
		}
		if tone.Duration != want {
			t.Errorf("tone %d: expected duration %v, got %v", i, want, tone.Duration)
		}
	}
}

func TestTextPlanTrims(t *testing.T) {
	tones, err := DefaultProtocol.TextPlan("  Hi\t\n")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(tones) - len(Start) - len(End); n != 2 {
		t.Errorf("expected 2 body tones, got %d", n)
	}
}

func TestTextPlanRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", " \t\n "},
		{"control character", "a\x07b"},
		{"non ascii", "héllo"},
		{"whole marker", "<FP"},
		{"marker with neighbours", ";;EQ!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tones, err := DefaultProtocol.TextPlan(tt.text)
			if !errors.Is(err, ErrInputRejected) {
				t.Errorf("expected ErrInputRejected, got %v", err)
			}
			if tones != nil {
				t.Errorf("expected no tones, got %d", len(tones))
			}
		})
	}
}

func TestTextPlanMarkerCarriers(t *testing.T) {
	// characters on or near a marker carrier, short of the whole sequence
	for _, text := range []string{"a<b", ":)", "<html>", "=5", ">x", ";", "<F", "<Fun"} {
		if _, err := DefaultProtocol.TextPlan(text); err != nil {
			t.Errorf("%q: expected a plan, got %v", text, err)
		}
	}
}

func TestVoicePlan(t *testing.T) {
	samples := make([]float64, 250)
	for i := range samples {
		samples[i] = math.Sin(float64(i) / 10)
	}

	tones, err := DefaultProtocol.VoicePlan(samples)
	if err != nil {
		t.Fatal(err)
	}

	head := len(Start) + len(VoiceMarker)
	if got := len(tones) - head - len(End); got != DefaultTiming.MaxVoiceSamples {
		t.Fatalf("expected %d sample tones, got %d", DefaultTiming.MaxVoiceSamples, got)
	}
	if got := frequencies(tones[:head]); !reflect.DeepEqual(got, []float64{2000, 2500, 3000, 4000, 4500, 5000}) {
		t.Errorf("unexpected head %v", got)
	}
	for i, tone := range tones[head : head+DefaultTiming.MaxVoiceSamples] {
		if tone.Frequency != codec.EncodeVoiceSample(samples[i]) {
			t.Errorf("sample %d: expected %v, got %v", i, codec.EncodeVoiceSample(samples[i]), tone.Frequency)
		}
		if tone.Duration != DefaultTiming.Voice {
			t.Errorf("sample %d: expected duration %v, got %v", i, DefaultTiming.Voice, tone.Duration)
		}
	}
}

func TestVoicePlanRejectsEmpty(t *testing.T) {
	if _, err := DefaultProtocol.VoicePlan(nil); !errors.Is(err, ErrInputRejected) {
		t.Errorf("expected ErrInputRejected, got %v", err)
	}
}

func TestSignatureWindowsDisjoint(t *testing.T) {
	tol := DefaultMarkerTolerance

	// every signature tone must fall on both data grids
	for _, sig := range []Signature{Start, End, VoiceMarker} {
		for _, f := range sig {
			for _, mode := range []codec.Mode{codec.Text, codec.Voice} {
				if n := codec.Nominal(mode, codec.Slot(mode, f)); n != f {
					t.Errorf("%v tone %v is off the %v grid", sig, f, mode)
				}
			}
		}
	}

	// the marker window must not reach any START or END tone
	for _, sig := range []Signature{Start, End} {
		for i := range sig {
			if VoiceMarker.Near(0, sig[i], tol) {
				t.Errorf("marker window overlaps %v", sig[i])
			}
		}
	}

	// tones of one signature must be further apart than two windows
	for _, sig := range []Signature{Start, End, VoiceMarker} {
		for i := 1; i < len(sig); i++ {
			if math.Abs(sig[i]-sig[i-1]) <= 2*tol {
				t.Errorf("tones %v and %v are too close", sig[i-1], sig[i])
			}
		}
	}
}

func TestEnvelope(t *testing.T) {
	e := DefaultEnvelope
	d := 50 * time.Millisecond

	if g := e.At(0, d); g != 0 {
		t.Errorf("expected silence at start, got %v", g)
	}
	if g := e.At(e.Attack, d); math.Abs(g-e.Gain) > 1e-9 {
		t.Errorf("expected full gain after attack, got %v", g)
	}
	if g := e.At(d, d); g != 0 {
		t.Errorf("expected silence at end, got %v", g)
	}
	for step := time.Duration(0); step < d; step += time.Millisecond {
		if g := e.At(step, d); g < 0 || g > e.Gain {
			t.Errorf("gain %v out of range at %v", g, step)
		}
	}

	// short tones shrink the attack so the envelope still fits
	short := 10 * time.Millisecond
	if g := e.At(5*time.Millisecond, short); math.Abs(g-e.Gain) > 1e-9 {
		t.Errorf("expected peak in the middle of a short tone, got %v", g)
	}
}

func TestAirtime(t *testing.T) {
	tones, _ := DefaultProtocol.TextPlan("Hi")
	if got := Airtime(tones); got != 700*time.Millisecond {
		t.Errorf("expected 700ms, got %v", got)
	}
}
