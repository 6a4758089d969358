package codec

import "math"

const (
	BaseFreq  = 1000.0 // carrier of unit 0 in Hz
	TextStep  = 50.0   // spacing between adjacent character codes
	VoiceStep = 20.0   // spacing between adjacent voice levels

	MinTextCode = 32
	MaxTextCode = 126
	MaxLevel    = 255

	// the receiver accepts a full byte worth of slots in either band
	TextBandWidth  = 256 * TextStep
	VoiceBandWidth = 256 * VoiceStep
)

type Mode int

const (
	Text Mode = iota
	Voice
)

func (m Mode) String() string {
	switch m {
	case Text:
		return "text"
	case Voice:
		return "voice"
	}
	return "unknown"
}

// Step returns the frequency spacing of the symbol grid used by the mode.
func (m Mode) Step() float64 {
	if m == Voice {
		return VoiceStep
	}
	return TextStep
}

// Symbol is one decoded payload unit: a character code in Text mode or a
// quantized amplitude level in Voice mode.
type Symbol struct {
	Mode  Mode
	Value int
}

func TextSymbol(code byte) Symbol {
	return Symbol{Mode: Text, Value: int(code)}
}

func VoiceSymbol(level int) Symbol {
	return Symbol{Mode: Voice, Value: level}
}

func (s Symbol) Char() byte {
	return byte(s.Value)
}

// Sample reconstructs the amplitude a voice symbol stands for.
func (s Symbol) Sample() float64 {
	return levelToSample(s.Value)
}

func (s Symbol) Frequency() float64 {
	return Nominal(s.Mode, s.Value)
}

func IsPrintable(c byte) bool {
	return c >= MinTextCode && c <= MaxTextCode
}

// EncodeText maps the raw character code onto the text grid. Callers are
// expected to only pass printable characters.
func EncodeText(c byte) float64 {
	return BaseFreq + float64(c)*TextStep
}

func TextCode(freq float64) int {
	return int(math.Round((freq - BaseFreq) / TextStep))
}

// DecodeText reports false for any frequency whose nearest code is not a
// printable character.
func DecodeText(freq float64) (byte, bool) {
	code := TextCode(freq)
	if code < MinTextCode || code > MaxTextCode {
		return 0, false
	}
	return byte(code), true
}

// Quantize linearly rescales a sample in [-1, 1] to a level in [0, 255].
func Quantize(sample float64) int {
	level := int(math.Floor((sample + 1) / 2 * MaxLevel))
	return max(0, min(MaxLevel, level))
}

func EncodeVoiceSample(sample float64) float64 {
	return BaseFreq + float64(Quantize(sample))*VoiceStep
}

// VoiceLevel is not clamped, out-of-band frequencies give out-of-range levels.
func VoiceLevel(freq float64) int {
	return int(math.Round((freq - BaseFreq) / VoiceStep))
}

// DecodeVoiceSample returns the center of the quantization cell the
// frequency falls in. The result is not clamped to [-1, 1].
func DecodeVoiceSample(freq float64) float64 {
	return levelToSample(VoiceLevel(freq))
}

func levelToSample(level int) float64 {
	return 2*(float64(level)+0.5)/MaxLevel - 1
}

func InTextBand(freq float64) bool {
	return freq >= BaseFreq && freq < BaseFreq+TextBandWidth
}

func InVoiceBand(freq float64) bool {
	return freq >= BaseFreq && freq < BaseFreq+VoiceBandWidth
}

// Slot returns the index of the grid cell nearest to freq for the mode.
func Slot(mode Mode, freq float64) int {
	if mode == Voice {
		return VoiceLevel(freq)
	}
	return TextCode(freq)
}

// Nominal is the exact carrier of a grid slot.
func Nominal(mode Mode, slot int) float64 {
	return BaseFreq + float64(slot)*mode.Step()
}

// Clamp limits a decoded sample to the playable range.
func Clamp(sample float64) float64 {
	return max(-1, min(1, sample))
}
