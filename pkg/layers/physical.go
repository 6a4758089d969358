package layers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"Aethertone/pkg/device"
	"Aethertone/pkg/frame"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/modem"
	"Aethertone/pkg/spectrum"

	"go.uber.org/zap"
)

var (
	ErrClosed  = errors.New("physical layer closed")
	ErrNotOpen = errors.New("physical layer not open")
)

const (
	DefaultHop            = 480
	DefaultSnapshotBuffer = 4096
)

// PhysicalLayer puts tones on a device and turns what the device captures
// into spectrum snapshots. It implements frame.Emitter.
type PhysicalLayer struct {
	Device    device.Device
	Modulator modem.Modulator
	Analyzer  *spectrum.Analyzer

	// Hop is the number of captured samples between two snapshots.
	Hop int
	// SnapshotBuffer is the capacity of each listener channel. Snapshots are
	// dropped when a listener falls this far behind.
	SnapshotBuffer int

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	encoder encoder
	decoder decoder
	log     *zap.Logger
	closed  chan struct{}
	once    sync.Once
}

type tone struct {
	samples []int32
	done    chan struct{}
}

type encoder struct {
	queue   chan *tone
	current *tone
}

type listener struct {
	ch chan spectrum.Snapshot
}

type decoder struct {
	mu        sync.Mutex
	listeners []*listener
	window    []float64
	sinceHop  int
}

func (p *PhysicalLayer) Open() error {
	if p.Analyzer == nil {
		return fmt.Errorf("physical layer: no analyzer")
	}
	if p.Hop <= 0 {
		p.Hop = DefaultHop
	}
	if p.SnapshotBuffer <= 0 {
		p.SnapshotBuffer = DefaultSnapshotBuffer
	}
	p.log = p.Logger
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.log = p.log.Named("physical")

	p.encoder.queue = make(chan *tone)
	p.decoder.window = make([]float64, p.Analyzer.Size)
	p.closed = make(chan struct{})

	if err := p.Device.Start(p.update); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	p.log.Info("opened", zap.Float64("sampleRate", p.Analyzer.SampleRate),
		zap.Int("fftSize", p.Analyzer.Size), zap.Int("hop", p.Hop),
		zap.Duration("frame", p.FrameDuration()))
	return nil
}

// Close stops the device. Tones still queued or playing are released with
// ErrClosed and every listener channel is closed.
func (p *PhysicalLayer) Close() {
	if p.closed == nil {
		return
	}
	p.once.Do(func() {
		p.Device.Stop()
		close(p.closed)
		p.log.Info("closed")
	})
}

// FrameDuration is the time between two snapshots.
func (p *PhysicalLayer) FrameDuration() time.Duration {
	if p.Analyzer == nil || p.Analyzer.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.Hop) * float64(time.Second) / p.Analyzer.SampleRate)
}

// EmitTone queues the tone and blocks until the device has played all of
// it. Cancelling ctx only abandons a tone that has not started yet.
func (p *PhysicalLayer) EmitTone(ctx context.Context, t frame.Tone) error {
	if p.closed == nil {
		return ErrNotOpen
	}
	job := &tone{samples: p.Modulator.Modulate(t), done: make(chan struct{})}

	select {
	case p.encoder.queue <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	}

	select {
	case <-job.done:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// Listen returns a stream of snapshots taken every Hop samples. The stream
// is closed when ctx is done or the layer closes.
func (p *PhysicalLayer) Listen(ctx context.Context) <-chan spectrum.Snapshot {
	l := &listener{ch: make(chan spectrum.Snapshot, max(1, p.SnapshotBuffer))}
	if p.closed == nil {
		close(l.ch)
		return l.ch
	}

	d := &p.decoder
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-p.closed:
		}
		d.mu.Lock()
		d.listeners = slices.DeleteFunc(d.listeners, func(x *listener) bool { return x == l })
		close(l.ch)
		d.mu.Unlock()
	}()
	return l.ch
}

func (p *PhysicalLayer) update(in, out []int32) {
	p.read(in)
	p.encoder.write(out)
}

// read slides the captured samples into the analysis window and takes a
// snapshot at every hop boundary.
func (p *PhysicalLayer) read(in []int32) {
	d := &p.decoder
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(in) > 0 {
		n := min(len(in), p.Hop-d.sinceHop)
		d.push(in[:n])
		in = in[n:]
		d.sinceHop += n
		if d.sinceHop < p.Hop {
			break
		}
		d.sinceHop = 0
		if len(d.listeners) == 0 {
			continue
		}

		snap := p.Analyzer.Analyze(d.window)
		for _, l := range d.listeners {
			select {
			case l.ch <- snap:
			default:
				p.Metrics.SnapshotDropped()
			}
		}
	}
}

func (d *decoder) push(samples []int32) {
	size := len(d.window)
	if len(samples) >= size {
		samples = samples[len(samples)-size:]
	}
	copy(d.window, d.window[len(samples):])
	tail := d.window[size-len(samples):]
	for i, s := range samples {
		tail[i] = float64(s) / 0x7fffffff
	}
}

// write fills out from the queued tones, one after another without gaps,
// and pads with silence when nothing is queued.
func (e *encoder) write(out []int32) {
	i := 0
	for i < len(out) {
		if e.current == nil {
			select {
			case e.current = <-e.queue:
			default:
			}
		}
		if e.current == nil {
			break
		}

		n := copy(out[i:], e.current.samples)
		e.current.samples = e.current.samples[n:]
		i += n

		if len(e.current.samples) == 0 {
			close(e.current.done)
			e.current = nil
		}
	}

	for ; i < len(out); i++ {
		out[i] = 0
	}
}
