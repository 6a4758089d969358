package device

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Link wires one node: it captures from the In buffer and plays into the
// Out buffer. Nodes sharing a buffer hear each other.
type Link[BufferIDType comparable] struct {
	In  BufferIDType
	Out BufferIDType
}

type NetworkConfig[BufferIDType comparable] []Link[BufferIDType]

// Network simulates several devices sharing acoustic buffers. One clock
// drives every node: each tick all started nodes run their callback, then
// the outputs are summed into the buffers the nodes will capture from on
// the next tick.
type Network[BufferIDType comparable] struct {
	SampleRate float64                     // the fake sample rate, 0 means no limit
	Config     NetworkConfig[BufferIDType] // the topology of the network
	Noise      float64                     // peak of uniform noise added to every buffer, relative to full scale
	Seed       uint64                      // noise seed
	LateUpdate func()                      // the post process function

	mu      sync.Mutex
	buffers map[BufferIDType][]int32
	nodes   []*networkNode[BufferIDType]
	rng     *rand.Rand
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type networkNode[BufferIDType comparable] struct {
	net      *Network[BufferIDType]
	input    []int32
	output   []int32
	callback func([]int32, []int32)
}

func (n *Network[BufferIDType]) getBuffer(name BufferIDType) []int32 {
	buf, ok := n.buffers[name]
	if !ok {
		buf = alloci32(BufferSize)
		n.buffers[name] = buf
	}
	return buf
}

// Build creates one device per Config entry, in order.
func (n *Network[BufferIDType]) Build() []Device {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.buffers = make(map[BufferIDType][]int32)
	n.rng = rand.New(rand.NewSource(n.Seed))
	n.nodes = n.nodes[:0]

	devices := make([]Device, 0, len(n.Config))
	for _, link := range n.Config {
		node := &networkNode[BufferIDType]{
			net:    n,
			input:  n.getBuffer(link.In),
			output: alloci32(BufferSize),
		}
		n.getBuffer(link.Out)
		n.nodes = append(n.nodes, node)
		devices = append(devices, node)
	}
	return devices
}

// Stop detaches every node and stops the clock.
func (n *Network[BufferIDType]) Stop() {
	n.mu.Lock()
	for _, d := range n.nodes {
		d.callback = nil
	}
	n.stopLocked()
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Network[BufferIDType]) stopLocked() {
	if n.running {
		close(n.done)
		n.running = false
	}
}

func (n *Network[BufferIDType]) update() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, d := range n.nodes {
		if d.callback != nil {
			d.callback(d.input, d.output)
		} else {
			cleari32(d.output)
		}
	}

	// clear the buffers
	for _, buf := range n.buffers {
		cleari32(buf)
	}

	// sum up the output of all the devices to the input buffer
	for i, link := range n.Config {
		buf := n.buffers[link.Out]
		sumi32(buf, n.nodes[i].output, buf)
	}

	if n.Noise > 0 {
		for _, buf := range n.buffers {
			noisei32(n.rng, buf, n.Noise)
		}
	}

	if n.LateUpdate != nil {
		n.LateUpdate()
	}
}

func (n *Network[BufferIDType]) run(done <-chan struct{}) {
	defer n.wg.Done()

	interval := period(n.SampleRate, BufferSize)
	if interval == 0 {
		for {
			select {
			case <-done:
				return
			default:
				n.update()
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
			n.update()
		}
	}
}

// Start attaches the callback. The first node to start starts the clock.
func (d *networkNode[BufferIDType]) Start(callback func([]int32, []int32)) error {
	n := d.net
	n.mu.Lock()
	defer n.mu.Unlock()

	d.callback = callback
	if !n.running {
		n.running = true
		n.done = make(chan struct{})
		n.wg.Add(1)
		go n.run(n.done)
	}
	return nil
}

// Stop detaches the node. The clock stops with the last node.
func (d *networkNode[BufferIDType]) Stop() {
	n := d.net
	n.mu.Lock()
	d.callback = nil
	idle := true
	for _, node := range n.nodes {
		if node.callback != nil {
			idle = false
		}
	}
	if idle {
		n.stopLocked()
	}
	n.mu.Unlock()
	if idle {
		n.wg.Wait()
	}
}
