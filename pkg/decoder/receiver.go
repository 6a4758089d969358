package decoder

import (
	"math"
	"time"

	"Aethertone/pkg/codec"
	"Aethertone/pkg/frame"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/spectrum"

	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Receiving
)

func (s State) String() string {
	if s == Receiving {
		return "receiving"
	}
	return "idle"
}

// Events are the notifications a receiver sends outward. Nil fields are
// skipped. They run on the goroutine that feeds the receiver.
type Events struct {
	OnSymbol     func(codec.Symbol)
	OnModeChange func(codec.Mode)
	OnMessage    func(Message)
}

type Options struct {
	NoiseFloor      uint8
	MarkerTolerance float64
	// FrameDuration is the time between two snapshots. Zero makes every
	// run of identical frames count as exactly one symbol.
	FrameDuration time.Duration
	Timing        frame.Timing

	Events  Events
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{
		NoiseFloor:      spectrum.DefaultNoiseFloor,
		MarkerTolerance: frame.DefaultMarkerTolerance,
		Timing:          frame.DefaultTiming,
	}
}

// run is a stretch of consecutive frames quantized to the same grid slot.
type run struct {
	slot   int
	frames int     // length in frames, bridged gaps included
	voiced int     // frames above the noise floor
	sum    float64 // sum of the voiced frame frequencies
	gap    int     // trailing silent frames not yet accounted for
}

func (r run) mean() float64 {
	return r.sum / float64(r.voiced)
}

// Receiver is the state of one listening session. It must be fed from a
// single goroutine, one snapshot at a time, in arrival order.
type Receiver struct {
	opts Options
	log  *zap.Logger

	state  State
	mode   codec.Mode
	buffer []codec.Symbol

	cur  run
	open bool

	startPos int   // START tones matched so far
	pending  []run // runs matching a prefix of END, released as data if END breaks
	marker   []run // runs matching a prefix of the voice marker
	// the open run began on the last marker tone and is on the voice grid
	markerRun bool
}

func NewReceiver(opts Options) *Receiver {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{
		opts: opts,
		log:  log.Named("decoder"),
	}
}

func (r *Receiver) State() State {
	return r.state
}

func (r *Receiver) Mode() codec.Mode {
	return r.mode
}

// Buffered returns a copy of the symbols decoded so far for the current
// message.
func (r *Receiver) Buffered() []codec.Symbol {
	return append([]codec.Symbol(nil), r.buffer...)
}

// Process consumes one snapshot.
func (r *Receiver) Process(snap spectrum.Snapshot) {
	freq, ok := snap.Dominant(r.opts.NoiseFloor)
	r.opts.Metrics.Frame(!ok)
	if !ok {
		r.silence()
		return
	}

	slot := codec.Slot(r.mode, freq)
	if r.open && r.cur.slot == slot {
		r.cur.frames += r.cur.gap + 1
		r.cur.gap = 0
		r.cur.voiced++
		r.cur.sum += freq
		return
	}

	r.closeRun()
	if r.markerCompletes(freq) {
		r.enterVoice()
		r.markerRun = true
	}
	// closing may have ended a message and changed the grid
	slot = codec.Slot(r.mode, freq)
	r.cur = run{slot: slot, frames: 1, voiced: 1, sum: freq}
	r.open = true
}

// Flush ends the session's current message: the open run and any held
// END lookahead are decoded, the buffer is returned and the receiver goes
// back to Idle.
func (r *Receiver) Flush() Message {
	r.closeRun()
	r.releaseMarker()
	r.releasePending()

	msg := Message{Mode: r.mode, Symbols: r.buffer, Complete: false}
	if len(msg.Symbols) > 0 {
		r.log.Debug("flushing partial message", zap.Int("symbols", len(msg.Symbols)), zap.Stringer("mode", msg.Mode))
		r.opts.Metrics.Message(false)
		if r.opts.Events.OnMessage != nil {
			r.opts.Events.OnMessage(msg)
		}
	}
	r.reset()
	return msg
}

func (r *Receiver) silence() {
	if !r.open {
		return
	}
	r.cur.gap++
	// a short dip inside a tone is bridged, a gap of half a symbol ends it
	if r.opts.FrameDuration <= 0 || time.Duration(r.cur.gap)*r.opts.FrameDuration*2 >= r.symbolDuration() {
		r.closeRun()
	}
}

// markerArmed reports whether the voice marker may still begin: nothing has
// been decoded for the current message yet.
func (r *Receiver) markerArmed() bool {
	return r.state == Receiving && !r.markerRun && r.mode == codec.Text && len(r.buffer) == 0 && len(r.pending) == 0
}

// markerCompletes reports whether a run starting at freq is the last marker
// tone after the others were held in order.
func (r *Receiver) markerCompletes(freq float64) bool {
	last := len(frame.VoiceMarker) - 1
	return r.markerArmed() && len(r.marker) == last &&
		frame.VoiceMarker.Near(last, freq, r.opts.MarkerTolerance)
}

func (r *Receiver) enterVoice() {
	r.log.Debug("voice marker", zap.Stringer("from", r.state))
	r.state = Receiving
	r.mode = codec.Voice
	r.startPos = 0
	r.marker = nil
	r.opts.Metrics.ModeSwitched()
	if r.opts.Events.OnModeChange != nil {
		r.opts.Events.OnModeChange(codec.Voice)
	}
}

func (r *Receiver) closeRun() {
	if !r.open {
		return
	}
	rn := r.cur
	rn.gap = 0
	r.open = false

	if r.markerRun {
		r.markerRun = false
		// a first sample sharing the carrier of the last marker tone
		r.emitN(rn, r.surplus(rn))
		return
	}
	if r.matchMarker(rn) {
		return
	}
	r.dispatch(rn)
}

func (r *Receiver) dispatch(rn run) {
	if r.state == Idle {
		r.matchStart(rn)
		return
	}
	r.matchEnd(rn)
}

// matchMarker holds runs that follow the voice marker in order. A run near
// the tone already held is the same tone split by jitter or a dip.
func (r *Receiver) matchMarker(rn run) bool {
	if !r.markerArmed() {
		return false
	}
	tol := r.opts.MarkerTolerance
	freq := rn.mean()
	if n := len(r.marker); n > 0 && frame.VoiceMarker.Near(n-1, freq, tol) {
		r.marker[n-1].frames += rn.frames
		return true
	}
	if frame.VoiceMarker.Near(len(r.marker), freq, tol) {
		r.marker = append(r.marker, rn)
		return true
	}

	r.releaseMarker()
	if r.markerArmed() && frame.VoiceMarker.Near(0, freq, tol) {
		r.marker = append(r.marker, rn)
		return true
	}
	return false
}

// releaseMarker hands held marker runs back to the normal path.
func (r *Receiver) releaseMarker() {
	held := r.marker
	r.marker = nil
	for _, rn := range held {
		r.dispatch(rn)
	}
}

func (r *Receiver) matchStart(rn run) {
	f := codec.Nominal(r.mode, rn.slot)

	switch {
	case r.startPos > 0 && f == frame.Start[r.startPos-1]:
		// the same tone split by a dip
		return
	case f == frame.Start[r.startPos]:
		r.startPos++
	case f == frame.Start[0]:
		r.startPos = 1
	default:
		r.startPos = 0
		r.log.Debug("ignoring tone while idle", zap.Float64("freq", rn.mean()))
		return
	}

	if r.startPos == len(frame.Start) {
		r.log.Debug("start signature")
		r.startPos = 0
		r.state = Receiving
		r.mode = codec.Text
		// a first character sharing the carrier of the last START tone
		r.emitN(rn, r.surplus(rn))
	}
}

func (r *Receiver) matchEnd(rn run) {
	f := codec.Nominal(r.mode, rn.slot)

	if n := len(r.pending); n > 0 && r.pending[n-1].slot == rn.slot {
		r.pending[n-1].frames += rn.frames
		return
	}

	if f == frame.End[len(r.pending)] {
		r.pending = append(r.pending, rn)
		if len(r.pending) == len(frame.End) {
			head := r.pending[0]
			r.pending = nil
			// a last symbol sharing the carrier of the first END tone
			r.emitN(head, r.surplus(head))
			r.complete()
		}
		return
	}

	r.releasePending()
	if f == frame.End[0] {
		r.pending = append(r.pending, rn)
		return
	}
	r.emit(rn)
}

func (r *Receiver) releasePending() {
	pending := r.pending
	r.pending = nil
	for _, rn := range pending {
		r.emit(rn)
	}
}

func (r *Receiver) emit(rn run) {
	r.emitN(rn, r.symbolCount(rn))
}

// emitN decodes a closed data run into n symbols.
func (r *Receiver) emitN(rn run, n int) {
	if n <= 0 {
		return
	}
	freq := rn.mean()
	var sym codec.Symbol

	switch r.mode {
	case codec.Text:
		c, ok := codec.DecodeText(codec.Nominal(codec.Text, rn.slot))
		if !codec.InTextBand(freq) || !ok {
			r.miss(freq)
			return
		}
		sym = codec.TextSymbol(c)
	case codec.Voice:
		if !codec.InVoiceBand(freq) {
			r.miss(freq)
			return
		}
		sym = codec.VoiceSymbol(rn.slot)
	}

	for range n {
		r.buffer = append(r.buffer, sym)
		r.opts.Metrics.SymbolDecoded(sym.Mode)
		if r.opts.Events.OnSymbol != nil {
			r.opts.Events.OnSymbol(sym)
		}
	}
}

func (r *Receiver) miss(freq float64) {
	r.opts.Metrics.DecodeMiss()
	r.log.Debug("decode miss", zap.Float64("freq", freq), zap.Stringer("mode", r.mode))
}

func (r *Receiver) complete() {
	msg := Message{Mode: r.mode, Symbols: r.buffer, Complete: true}
	r.log.Debug("end signature", zap.Int("symbols", len(msg.Symbols)), zap.Stringer("mode", msg.Mode))
	r.opts.Metrics.Message(true)
	if r.opts.Events.OnMessage != nil {
		r.opts.Events.OnMessage(msg)
	}
	r.reset()
}

func (r *Receiver) reset() {
	wasVoice := r.mode == codec.Voice
	r.state = Idle
	r.mode = codec.Text
	r.buffer = nil
	r.open = false
	r.startPos = 0
	r.pending = nil
	r.marker = nil
	r.markerRun = false
	if wasVoice && r.opts.Events.OnModeChange != nil {
		r.opts.Events.OnModeChange(codec.Text)
	}
}

func (r *Receiver) symbolDuration() time.Duration {
	if r.mode == codec.Voice {
		return r.opts.Timing.Voice
	}
	return r.opts.Timing.Text
}

func (r *Receiver) symbolCount(rn run) int {
	fd, sd := r.opts.FrameDuration, r.symbolDuration()
	if fd <= 0 || sd <= 0 {
		return 1
	}
	n := int(math.Round(float64(time.Duration(rn.frames)*fd) / float64(sd)))
	return max(1, n)
}

// surplus is the number of whole symbols a signature run lasted beyond the
// signature tone itself.
func (r *Receiver) surplus(rn run) int {
	fd, sd := r.opts.FrameDuration, r.symbolDuration()
	if fd <= 0 || sd <= 0 {
		return 0
	}
	extra := time.Duration(rn.frames)*fd - r.opts.Timing.Signature
	return int(math.Floor(float64(extra)/float64(sd) + 0.25))
}
