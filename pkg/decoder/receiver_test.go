package decoder

import (
	"math"
	"reflect"
	"testing"
	"time"

	"Aethertone/pkg/codec"
	"Aethertone/pkg/frame"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/spectrum"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	testSampleRate = 20480 // 10 Hz per bin with 1024 bins
	testBins       = 1024
	testFrame      = 10 * time.Millisecond
)

func tone(freq float64) spectrum.Snapshot {
	mags := make([]uint8, testBins)
	mags[spectrum.BinOf(freq, testSampleRate, testBins)] = 200
	return spectrum.Snapshot{Magnitudes: mags, SampleRate: testSampleRate}
}

func quiet() spectrum.Snapshot {
	return spectrum.Snapshot{Magnitudes: make([]uint8, testBins), SampleRate: testSampleRate}
}

// render turns a tone plan into the snapshots a listener would see, one
// every testFrame, followed by a short silence.
func render(tones []frame.Tone) []spectrum.Snapshot {
	var out []spectrum.Snapshot
	for _, t := range tones {
		n := int(math.Round(float64(t.Duration) / float64(testFrame)))
		for range n {
			out = append(out, tone(t.Frequency))
		}
	}
	for range 5 {
		out = append(out, quiet())
	}
	return out
}

func textPlan(t *testing.T, text string) []frame.Tone {
	t.Helper()
	tones, err := frame.DefaultProtocol.TextPlan(text)
	if err != nil {
		t.Fatal(err)
	}
	return tones
}

type recorder struct {
	symbols  []codec.Symbol
	modes    []codec.Mode
	messages []Message
}

func (r *recorder) options() Options {
	opts := DefaultOptions()
	opts.FrameDuration = testFrame
	opts.Events = Events{
		OnSymbol:     func(s codec.Symbol) { r.symbols = append(r.symbols, s) },
		OnModeChange: func(m codec.Mode) { r.modes = append(r.modes, m) },
		OnMessage:    func(m Message) { r.messages = append(r.messages, m) },
	}
	return opts
}

func feed(r *Receiver, snaps []spectrum.Snapshot) {
	for _, s := range snaps {
		r.Process(s)
	}
}

func TestReceiveText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"short", "Hi"},
		{"repeated characters", "Hello"},
		{"open paren first", "(A"},
		{"open paren last", "A("},
		{"signature characters", "2+("},
		{"punctuation", "a b!~"},
		{"smiley", ":)"},
		{"tag", "<html>"},
		{"equals first", "=5"},
		{"greater than first", ">x"},
		{"lone semicolon", ";"},
		{"two marker tones", "<Fun"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := NewReceiver(rec.options())
			feed(r, render(textPlan(t, tt.text)))

			if len(rec.messages) != 1 {
				t.Fatalf("expected 1 message, got %d", len(rec.messages))
			}
			msg := rec.messages[0]
			if !msg.Complete || msg.Mode != codec.Text {
				t.Errorf("expected a complete text message, got %v", msg)
			}
			if msg.Text() != tt.text {
				t.Errorf("expected %q, got %q", tt.text, msg.Text())
			}
			if len(rec.modes) != 0 {
				t.Errorf("expected no mode change, got %v", rec.modes)
			}
			if len(rec.symbols) != len(tt.text) {
				t.Errorf("expected %d symbol events, got %d", len(tt.text), len(rec.symbols))
			}
			if r.State() != Idle || len(r.Buffered()) != 0 {
				t.Errorf("expected an idle empty receiver, got %v with %d symbols", r.State(), len(r.Buffered()))
			}
		})
	}
}

func TestReceiveTwoMessages(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(rec.options())
	feed(r, render(textPlan(t, "one")))
	feed(r, render(textPlan(t, "two")))

	if len(rec.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(rec.messages))
	}
	if rec.messages[0].Text() != "one" || rec.messages[1].Text() != "two" {
		t.Errorf("unexpected messages %v", rec.messages)
	}
}

func TestReceiveBridgesDip(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(rec.options())

	snaps := render(frame.Start.Tones(frame.DefaultTiming))
	snaps = snaps[:len(snaps)-5]
	h := tone(codec.EncodeText('H'))
	// one silent frame inside the character
	snaps = append(snaps, h, h, quiet(), h, h)
	snaps = append(snaps, render(frame.End.Tones(frame.DefaultTiming))...)
	feed(r, snaps)

	if len(rec.messages) != 1 || rec.messages[0].Text() != "H" {
		t.Errorf("expected a single H, got %v", rec.messages)
	}
}

func TestReceiveVoice(t *testing.T) {
	samples := []float64{0, 0, -0.5, 0.5, 1, -1, 0.25}
	tones, err := frame.DefaultProtocol.VoicePlan(samples)
	if err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	r := NewReceiver(rec.options())
	feed(r, render(tones))

	if !reflect.DeepEqual(rec.modes, []codec.Mode{codec.Voice, codec.Text}) {
		t.Errorf("expected a switch to voice and back, got %v", rec.modes)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.messages))
	}
	msg := rec.messages[0]
	if !msg.Complete || msg.Mode != codec.Voice {
		t.Errorf("expected a complete voice message, got %v", msg)
	}
	got := msg.Samples()
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i, s := range samples {
		if math.Abs(got[i]-s) > 1.0/codec.MaxLevel+1e-9 {
			t.Errorf("sample %d: expected ~%v, got %v", i, s, got[i])
		}
	}
	if r.Mode() != codec.Text {
		t.Errorf("expected text mode after END, got %v", r.Mode())
	}
}

func TestReceiveVoiceOnMarkerCarrier(t *testing.T) {
	// level 200 sits on the last marker tone and extends its run
	s := codec.DecodeVoiceSample(frame.VoiceMarker[len(frame.VoiceMarker)-1])
	tones, err := frame.DefaultProtocol.VoicePlan([]float64{s, s, 0})
	if err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	r := NewReceiver(rec.options())
	feed(r, render(tones))

	if !reflect.DeepEqual(rec.modes, []codec.Mode{codec.Voice, codec.Text}) {
		t.Errorf("expected a switch to voice and back, got %v", rec.modes)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.messages))
	}
	var levels []int
	for _, sym := range rec.messages[0].Symbols {
		levels = append(levels, sym.Value)
	}
	if want := []int{200, 200, 127}; !reflect.DeepEqual(levels, want) {
		t.Errorf("expected levels %v, got %v", want, levels)
	}
}

func TestMarkerOnlyAtHead(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(rec.options())
	// '<' sits on the marker carrier but is not the first character
	feed(r, render(textPlan(t, "a<b")))

	if len(rec.modes) != 0 {
		t.Errorf("expected no mode change, got %v", rec.modes)
	}
	if len(rec.messages) != 1 || rec.messages[0].Text() != "a<b" {
		t.Errorf("unexpected messages %v", rec.messages)
	}
}

func TestIgnoresNoise(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(rec.options())

	var snaps []spectrum.Snapshot
	for i := range 200 {
		mags := make([]uint8, testBins)
		// everything stays below the noise floor
		mags[(i*37)%testBins] = 40
		mags[(i*11)%testBins] = 12
		snaps = append(snaps, spectrum.Snapshot{Magnitudes: mags, SampleRate: testSampleRate})
	}
	// loud tones that never form START
	for _, f := range []float64{4600, 2000, 6250, 2500, 1500} {
		for range 10 {
			snaps = append(snaps, tone(f))
		}
	}
	feed(r, snaps)

	if msg := r.Flush(); msg.Len() != 0 {
		t.Errorf("expected nothing, got %v", msg)
	}
	if len(rec.symbols) != 0 || len(rec.messages) != 0 {
		t.Errorf("expected no events, got %d symbols %d messages", len(rec.symbols), len(rec.messages))
	}
	if r.State() != Idle {
		t.Errorf("expected idle, got %v", r.State())
	}
}

func TestFlushPartial(t *testing.T) {
	tones := textPlan(t, "Hi")
	tones = tones[:len(tones)-len(frame.End)]

	rec := &recorder{}
	r := NewReceiver(rec.options())
	feed(r, render(tones))
	if r.State() != Receiving {
		t.Fatalf("expected receiving, got %v", r.State())
	}

	msg := r.Flush()
	if msg.Complete || msg.Text() != "Hi" {
		t.Errorf("expected partial Hi, got %v", msg)
	}
	if len(rec.messages) != 1 || rec.messages[0].Complete {
		t.Errorf("expected one partial message event, got %v", rec.messages)
	}
	if r.State() != Idle {
		t.Errorf("expected idle after flush, got %v", r.State())
	}
}

func TestFlushReleasesBrokenEnd(t *testing.T) {
	// body ends with the first two END tones but the third never comes
	tones := textPlan(t, "ok")
	tones = tones[:len(tones)-1]

	m := metrics.New(prometheus.NewRegistry())
	rec := &recorder{}
	opts := rec.options()
	opts.Metrics = m
	r := NewReceiver(opts)
	feed(r, render(tones))

	msg := r.Flush()
	// 3000 Hz is '(' for two symbols, 2500 Hz is code 30 and not printable
	want := "ok(("
	if msg.Text() != want {
		t.Errorf("expected %q, got %q", want, msg.Text())
	}
	if got := testutil.ToFloat64(m.DecodeMisses); got != 1 {
		t.Errorf("expected 1 decode miss, got %v", got)
	}
}

func TestZeroFrameDuration(t *testing.T) {
	rec := &recorder{}
	opts := rec.options()
	opts.FrameDuration = 0
	r := NewReceiver(opts)
	feed(r, render(textPlan(t, "Hi")))

	if len(rec.messages) != 1 || rec.messages[0].Text() != "Hi" {
		t.Errorf("unexpected messages %v", rec.messages)
	}
}

func TestReceiverMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rec := &recorder{}
	opts := rec.options()
	opts.Metrics = m
	r := NewReceiver(opts)

	snaps := render(textPlan(t, "Hi"))
	feed(r, snaps)

	if got := testutil.ToFloat64(m.Frames); got != float64(len(snaps)) {
		t.Errorf("expected %d frames, got %v", len(snaps), got)
	}
	if got := testutil.ToFloat64(m.SilentFrames); got != 5 {
		t.Errorf("expected 5 silent frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.SymbolsDecoded.WithLabelValues("text")); got != 2 {
		t.Errorf("expected 2 text symbols, got %v", got)
	}
	if got := testutil.ToFloat64(m.Messages.WithLabelValues("true")); got != 1 {
		t.Errorf("expected 1 complete message, got %v", got)
	}
}
