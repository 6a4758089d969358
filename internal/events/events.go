// Package events fans decoder activity out to websocket clients.
package events

import (
	"sync"
	"time"

	"Aethertone/pkg/codec"
	"Aethertone/pkg/decoder"
)

type Type string

const (
	TypeSymbol  Type = "symbol"
	TypeMode    Type = "mode"
	TypeMessage Type = "message"
)

const subscriberBuffer = 64

type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type SymbolData struct {
	Mode   string  `json:"mode"`
	Value  int     `json:"value"`
	Char   string  `json:"char,omitempty"`
	Sample *float64 `json:"sample,omitempty"`
}

type ModeData struct {
	Mode string `json:"mode"`
}

type MessageData struct {
	Mode     string `json:"mode"`
	Complete bool   `json:"complete"`
	Text     string `json:"text,omitempty"`
	Samples  int    `json:"samples,omitempty"`
}

type subscriber struct {
	ch chan Event
}

// Bus delivers every published event to all subscribers. A subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns the event stream and a function that unsubscribes and
// closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Attach returns a copy of events that also publishes every callback on the
// bus. Callbacks already set in events still run first.
func (b *Bus) Attach(events decoder.Events) decoder.Events {
	onSymbol, onMode, onMessage := events.OnSymbol, events.OnModeChange, events.OnMessage
	return decoder.Events{
		OnSymbol: func(s codec.Symbol) {
			if onSymbol != nil {
				onSymbol(s)
			}
			b.Publish(Event{Type: TypeSymbol, Data: symbolData(s)})
		},
		OnModeChange: func(m codec.Mode) {
			if onMode != nil {
				onMode(m)
			}
			b.Publish(Event{Type: TypeMode, Data: ModeData{Mode: m.String()}})
		},
		OnMessage: func(m decoder.Message) {
			if onMessage != nil {
				onMessage(m)
			}
			b.Publish(Event{Type: TypeMessage, Data: messageData(m)})
		},
	}
}

func symbolData(s codec.Symbol) SymbolData {
	d := SymbolData{Mode: s.Mode.String(), Value: s.Value}
	if s.Mode == codec.Voice {
		sample := codec.Clamp(s.Sample())
		d.Sample = &sample
	} else {
		d.Char = string(rune(s.Char()))
	}
	return d
}

func messageData(m decoder.Message) MessageData {
	d := MessageData{Mode: m.Mode.String(), Complete: m.Complete}
	if m.Mode == codec.Voice {
		d.Samples = len(m.Samples())
	} else {
		d.Text = m.Text()
	}
	return d
}
