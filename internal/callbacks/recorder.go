package callbacks

import "sync"

// Recorder captures the device input until Limit samples are collected.
// A zero Limit records until the device stops.
type Recorder struct {
	Limit int

	mu    sync.Mutex
	track []int32
	done  chan struct{}
	once  sync.Once
}

func (r *Recorder) Update(in, out []int32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Limit > 0 {
		in = in[:min(len(in), r.Limit-len(r.track))]
	}
	r.track = append(r.track, in...)
	if r.Limit > 0 && len(r.track) >= r.Limit {
		r.finish()
	}
	clear(out)
}

// Done is closed once Limit samples have been recorded.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneChan()
}

func (r *Recorder) doneChan() chan struct{} {
	if r.done == nil {
		r.done = make(chan struct{})
	}
	return r.done
}

func (r *Recorder) finish() {
	done := r.doneChan()
	r.once.Do(func() { close(done) })
}

// Track returns a copy of what has been recorded so far.
func (r *Recorder) Track() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.track...)
}
