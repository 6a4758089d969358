package frame

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"Aethertone/pkg/codec"
)

type recordingEmitter struct {
	mu       sync.Mutex
	tones    []Tone
	onTone   func(i int)
	canceled []bool // whether the tone's own context was already done when it finished
}

func (r *recordingEmitter) EmitTone(ctx context.Context, tone Tone) error {
	r.mu.Lock()
	i := len(r.tones)
	r.tones = append(r.tones, tone)
	r.mu.Unlock()

	if r.onTone != nil {
		r.onTone(i)
	}

	r.mu.Lock()
	r.canceled = append(r.canceled, ctx.Err() != nil)
	r.mu.Unlock()
	return nil
}

func TestTransmitterSendText(t *testing.T) {
	emitter := &recordingEmitter{}
	var progress []int
	tx := Transmitter{
		Emitter:    emitter,
		Protocol:   DefaultProtocol,
		OnProgress: func(sent, total int) { progress = append(progress, sent) },
	}

	if err := tx.SendText(context.Background(), "AB"); err != nil {
		t.Fatal(err)
	}

	expected := []float64{2000, 2500, 3000, codec.EncodeText('A'), codec.EncodeText('B'), 3000, 2500, 2000}
	if got := frequencies(emitter.tones); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("unexpected progress %v", progress)
	}
}

func TestTransmitterRejectsBeforeEmitting(t *testing.T) {
	emitter := &recordingEmitter{}
	tx := Transmitter{Emitter: emitter, Protocol: DefaultProtocol}

	if err := tx.SendText(context.Background(), "   "); !errors.Is(err, ErrInputRejected) {
		t.Errorf("expected ErrInputRejected, got %v", err)
	}
	if err := tx.SendVoice(context.Background(), nil); !errors.Is(err, ErrInputRejected) {
		t.Errorf("expected ErrInputRejected, got %v", err)
	}
	if len(emitter.tones) != 0 {
		t.Errorf("expected no tones, got %d", len(emitter.tones))
	}
}

func TestTransmitterStopKeepsCurrentTone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter := &recordingEmitter{}
	emitter.onTone = func(i int) {
		// stop request arrives while the fourth tone is sounding
		if i == 3 {
			cancel()
		}
	}
	tx := Transmitter{Emitter: emitter, Protocol: DefaultProtocol}

	err := tx.SendText(ctx, "Hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(emitter.tones) != 4 {
		t.Errorf("expected 4 tones before stopping, got %d", len(emitter.tones))
	}
	for i, c := range emitter.canceled {
		if c {
			t.Errorf("tone %d saw a cancelled context", i)
		}
	}
}

type failingEmitter struct{ err error }

func (f failingEmitter) EmitTone(context.Context, Tone) error { return f.err }

func TestTransmitterEmitterError(t *testing.T) {
	boom := errors.New("speaker unplugged")
	tx := Transmitter{Emitter: failingEmitter{boom}, Protocol: DefaultProtocol}
	if err := tx.SendText(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped emitter error, got %v", err)
	}
}

func TestTransmitterAsync(t *testing.T) {
	emitter := &recordingEmitter{}
	tx := Transmitter{Emitter: emitter, Protocol: DefaultProtocol}

	select {
	case err := <-tx.SendTextAsync(context.Background(), "ok"):
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("SendTextAsync timed out")
	}
	if len(emitter.tones) != 8 {
		t.Errorf("expected 8 tones, got %d", len(emitter.tones))
	}
}
