package callbacks

import (
	"reflect"
	"testing"
	"time"

	"Aethertone/pkg/device"
)

func TestRecorderLimit(t *testing.T) {
	r := Recorder{Limit: 5}
	out := []int32{7, 7, 7}

	r.Update([]int32{1, 2, 3}, out)
	select {
	case <-r.Done():
		t.Fatal("done too early")
	default:
	}
	r.Update([]int32{4, 5, 6}, out)

	select {
	case <-r.Done():
	default:
		t.Fatal("expected done after the limit")
	}
	if got := r.Track(); !reflect.DeepEqual(got, []int32{1, 2, 3, 4, 5}) {
		t.Errorf("unexpected track %v", got)
	}
	if !reflect.DeepEqual(out, []int32{0, 0, 0}) {
		t.Errorf("expected silent output, got %v", out)
	}

	r.Update([]int32{8}, out)
	if len(r.Track()) != 5 {
		t.Errorf("recorded past the limit")
	}
}

func TestPlayer(t *testing.T) {
	p := Player{Track: []int32{1, 2, 3, 4, 5}}
	out := make([]int32, 3)

	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{1, 2, 3}) {
		t.Errorf("unexpected first block %v", out)
	}
	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{4, 5, 0}) {
		t.Errorf("unexpected second block %v", out)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("expected done after the track")
	}

	p.Reset()
	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{1, 2, 3}) {
		t.Errorf("unexpected block after reset %v", out)
	}
}

func TestPlayerIntoRecorder(t *testing.T) {
	track := make([]int32, 3*device.BufferSize)
	for i := range track {
		track[i] = int32(i + 1)
	}
	player := Player{Track: track}
	recorder := Recorder{Limit: 2 * len(track)}

	dev := &device.Loopback{SampleRate: 480000}
	err := dev.Start(func(in, out []int32) {
		recorder.Update(in, out)
		player.Update(in, out)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Stop()

	select {
	case <-recorder.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not finish")
	}

	got := recorder.Track()
	// the loopback hands each block back one callback later
	start := 0
	for start < len(got) && got[start] == 0 {
		start++
	}
	if start+len(track) > len(got) || !reflect.DeepEqual(got[start:start+len(track)], track) {
		t.Errorf("played track did not come back intact")
	}
}
