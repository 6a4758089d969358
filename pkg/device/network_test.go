package device

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestNetwork(t *testing.T) {

	lastOutSum1 := alloci32(BufferSize)
	lastOutSum2 := alloci32(BufferSize)
	lastOutSum3 := alloci32(BufferSize)
	lastOutSum4 := alloci32(BufferSize)
	outputSum1 := alloci32(BufferSize)
	outputSum3 := alloci32(BufferSize)
	outputSum4 := alloci32(BufferSize)

	network := Network[string]{
		SampleRate: 48000,
		Config: NetworkConfig[string]{
			{In: "buf1", Out: "buf1"},
			{In: "buf1", Out: "buf1"},
			{In: "buf2", Out: "buf2"},
			{In: "buf3", Out: "buf4"},
			{In: "buf4", Out: "buf3"},
		},
		LateUpdate: func() {
			copy(lastOutSum1, outputSum1)
			copy(lastOutSum3, outputSum3)
			copy(lastOutSum4, outputSum4)
			cleari32(outputSum1)
		},
	}

	devs := network.Build()

	callbacks := []func(in, out []int32){
		func(in, out []int32) {
			if !reflect.DeepEqual(in, lastOutSum1) {
				t.Errorf("[dev1] Expected %v, but got %v", lastOutSum1[:4], in[:4])
			}
			randi32(out)
			sumi32(outputSum1, out, outputSum1)
		},
		func(in, out []int32) {
			if !reflect.DeepEqual(in, lastOutSum1) {
				t.Errorf("[dev2] Expected %v, but got %v", lastOutSum1[:4], in[:4])
			}
			randi32(out)
			sumi32(outputSum1, out, outputSum1)
		},
		func(in, out []int32) {
			if !reflect.DeepEqual(in, lastOutSum2) {
				t.Errorf("[dev3] Expected %v, but got %v", lastOutSum2[:4], in[:4])
			}
			randi32(out)
			copy(lastOutSum2, out)
		},
		func(in, out []int32) {
			if !reflect.DeepEqual(in, lastOutSum4) {
				t.Errorf("[dev4] Expected %v, but got %v", lastOutSum4[:4], in[:4])
			}
			randi32(out)
			copy(outputSum3, out)
		},
		func(in, out []int32) {
			if !reflect.DeepEqual(in, lastOutSum3) {
				t.Errorf("[dev5] Expected %v, but got %v", lastOutSum3[:4], in[:4])
			}
			randi32(out)
			copy(outputSum4, out)
		},
	}

	for i, dev := range devs {
		if err := dev.Start(callbacks[i]); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(30 * time.Millisecond)

	network.Stop()
}

func TestNetworkNoise(t *testing.T) {
	network := Network[int]{
		SampleRate: 48000,
		Config:     NetworkConfig[int]{{In: 0, Out: 0}, {In: 0, Out: 0}},
		Noise:      0.01,
		Seed:       1,
	}
	devs := network.Build()

	var heard, loud atomic.Int64
	limit := int32(0.01*0x7fffffff) + 1

	devs[0].Start(func(in, out []int32) {
		for _, s := range in {
			if s != 0 {
				heard.Add(1)
			}
			if s > limit || s < -limit {
				loud.Add(1)
			}
		}
		cleari32(out)
	})
	devs[1].Start(func(in, out []int32) {
		cleari32(out)
	})

	time.Sleep(30 * time.Millisecond)
	devs[0].Stop()
	devs[1].Stop()

	if heard.Load() == 0 {
		t.Error("expected noise on the shared buffer")
	}
	if loud.Load() != 0 {
		t.Errorf("%d samples exceeded the noise peak", loud.Load())
	}
}

func TestNetworkSilentNodeOutput(t *testing.T) {
	network := Network[string]{
		Config: NetworkConfig[string]{{In: "air", Out: "air"}, {In: "air", Out: "air"}},
	}
	devs := network.Build()

	var nonzero atomic.Int64
	devs[1].Start(func(in, out []int32) {
		for _, s := range in {
			if s != 0 {
				nonzero.Add(1)
			}
		}
	})
	time.Sleep(5 * time.Millisecond)
	network.Stop()

	if nonzero.Load() != 0 {
		t.Errorf("a node that never started leaked %d samples", nonzero.Load())
	}
}
