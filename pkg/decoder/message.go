package decoder

import (
	"fmt"

	"Aethertone/pkg/codec"
)

// Message is what the receiver hands out, either when END is seen
// (Complete) or when listening stops with symbols still buffered.
type Message struct {
	Mode     codec.Mode
	Symbols  []codec.Symbol
	Complete bool
}

func (m Message) Len() int {
	return len(m.Symbols)
}

// Text concatenates the text symbols. Voice symbols are skipped.
func (m Message) Text() string {
	buf := make([]byte, 0, len(m.Symbols))
	for _, s := range m.Symbols {
		if s.Mode == codec.Text {
			buf = append(buf, s.Char())
		}
	}
	return string(buf)
}

// Samples reconstructs the voice samples, clamped to [-1, 1].
func (m Message) Samples() []float64 {
	out := make([]float64, 0, len(m.Symbols))
	for _, s := range m.Symbols {
		if s.Mode == codec.Voice {
			out = append(out, codec.Clamp(s.Sample()))
		}
	}
	return out
}

func (m Message) String() string {
	status := "partial"
	if m.Complete {
		status = "complete"
	}
	if m.Mode == codec.Voice {
		return fmt.Sprintf("%s voice message, %d samples", status, len(m.Symbols))
	}
	return fmt.Sprintf("%s text message %q", status, m.Text())
}
