package callbacks

import "sync"

// Player writes Track to the device output once, then silence.
type Player struct {
	Track []int32

	mu   sync.Mutex
	idx  int
	done chan struct{}
	once sync.Once
}

func (p *Player) Update(in, out []int32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(out, p.Track[p.idx:])
	p.idx += n
	clear(out[n:])

	if p.idx >= len(p.Track) {
		done := p.doneChan()
		p.once.Do(func() { close(done) })
	}
}

// Done is closed once the whole track has been handed to the device.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneChan()
}

func (p *Player) doneChan() chan struct{} {
	if p.done == nil {
		p.done = make(chan struct{})
	}
	return p.done
}

func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = 0
	p.done = nil
	p.once = sync.Once{}
}
