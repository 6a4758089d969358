package device

import (
	"sync"
	"time"
)

// Loopback feeds every played block back as the next captured block, an
// ideal cable from speaker to microphone.
type Loopback struct {
	SampleRate float64 // the fake sample rate, 0 means no limit

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func (d *Loopback) Start(callback func(in, out []int32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return nil
	}
	d.done = make(chan struct{})
	done := d.done

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		buf := [2][]int32{alloci32(BufferSize), alloci32(BufferSize)}

		swap := true
		update := func() {
			if swap {
				callback(buf[0], buf[1])
			} else {
				callback(buf[1], buf[0])
			}
			swap = !swap
		}

		interval := period(d.SampleRate, BufferSize)
		if interval == 0 {
			for {
				select {
				case <-done:
					return
				default:
					update()
				}
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				update()
			}
		}
	}()
	return nil
}

// Stop returns once the callback has run for the last time. It must not be
// called from inside the callback.
func (d *Loopback) Stop() {
	d.mu.Lock()
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
	d.mu.Unlock()
	d.wg.Wait()
}
