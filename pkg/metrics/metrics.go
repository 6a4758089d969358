package metrics

import (
	"strconv"

	"Aethertone/pkg/codec"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters of both directions. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Transmit path
	TonesEmitted prometheus.Counter

	// Receive path
	Frames           prometheus.Counter
	SilentFrames     prometheus.Counter
	DecodeMisses     prometheus.Counter
	SymbolsDecoded   *prometheus.CounterVec
	ModeSwitches     prometheus.Counter
	Messages         *prometheus.CounterVec
	SnapshotsDropped prometheus.Counter
}

// New creates the metrics and registers them on reg. Use a fresh registry
// per test, the default one panics on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TonesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_tones_emitted_total",
			Help: "Total number of tones played by the transmitter",
		}),
		Frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_frames_total",
			Help: "Total number of spectrum snapshots processed by the decoder",
		}),
		SilentFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_silent_frames_total",
			Help: "Snapshots whose peak stayed below the noise floor",
		}),
		DecodeMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_decode_misses_total",
			Help: "Tone runs that matched no known band",
		}),
		SymbolsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aethertone_symbols_decoded_total",
			Help: "Total number of decoded symbols",
		}, []string{"mode"}),
		ModeSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_mode_switches_total",
			Help: "Number of voice markers recognized",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aethertone_messages_total",
			Help: "Messages handed to the caller",
		}, []string{"complete"}),
		SnapshotsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "aethertone_snapshots_dropped_total",
			Help: "Snapshots dropped because the listener fell behind",
		}),
	}
}

func (m *Metrics) ToneEmitted() {
	if m != nil {
		m.TonesEmitted.Inc()
	}
}

func (m *Metrics) Frame(silent bool) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	if silent {
		m.SilentFrames.Inc()
	}
}

func (m *Metrics) DecodeMiss() {
	if m != nil {
		m.DecodeMisses.Inc()
	}
}

func (m *Metrics) SymbolDecoded(mode codec.Mode) {
	if m != nil {
		m.SymbolsDecoded.WithLabelValues(mode.String()).Inc()
	}
}

func (m *Metrics) ModeSwitched() {
	if m != nil {
		m.ModeSwitches.Inc()
	}
}

func (m *Metrics) Message(complete bool) {
	if m != nil {
		m.Messages.WithLabelValues(strconv.FormatBool(complete)).Inc()
	}
}

func (m *Metrics) SnapshotDropped() {
	if m != nil {
		m.SnapshotsDropped.Inc()
	}
}
