package utils

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep/mp3"
	"github.com/mjibson/go-dsp/wav"
	"gonum.org/v1/gonum/floats"
)

var ErrUnsupportedClip = errors.New("unsupported clip format")

// Clip is mono audio in [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate float64
}

// LoadClip picks the decoder from the file extension: .wav, .mp3, or .f32
// for a raw little endian float32 file at fallbackRate.
func LoadClip(path string, fallbackRate float64) (Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return LoadWAV(path)
	case ".mp3":
		return LoadMP3(path)
	case ".f32", ".raw":
		samples, err := ReadBinary[float32](path)
		if err != nil {
			return Clip{}, err
		}
		return Clip{Samples: float32s(samples), SampleRate: fallbackRate}, nil
	}
	return Clip{}, fmt.Errorf("%w: %s", ErrUnsupportedClip, path)
}

// LoadWAV reads a PCM wave file, averaging channels.
func LoadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w, err := wav.New(f)
	if err != nil {
		return Clip{}, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := max(1, int(w.Header.NumChannels))
	// Samples counts every channel
	frames, err := w.ReadFloats(w.Samples)
	if err != nil && !errors.Is(err, io.EOF) {
		return Clip{}, fmt.Errorf("read %s: %w", path, err)
	}

	// integer PCM comes back on [0, 1], float PCM is already signed
	pcm := w.Header.AudioFormat == 1
	samples := make([]float64, len(frames)/channels)
	for i := range samples {
		var sum float64
		for c := range channels {
			v := float64(frames[i*channels+c])
			if pcm {
				v = 2*v - 1
			}
			sum += v
		}
		samples[i] = sum / float64(channels)
	}
	return Clip{Samples: samples, SampleRate: float64(w.Header.SampleRate)}, nil
}

// LoadMP3 decodes an mp3 file, averaging the two channels.
func LoadMP3(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open %s: %w", path, err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return Clip{}, fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	var samples []float64
	buf := make([][2]float64, 4096)
	for {
		n, ok := streamer.Stream(buf)
		for _, s := range buf[:n] {
			samples = append(samples, (s[0]+s[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Clip{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Clip{Samples: samples, SampleRate: float64(format.SampleRate)}, nil
}

// Downsample keeps the sample nearest to each output instant. Clips
// already at or below rate are returned unchanged.
func (c Clip) Downsample(rate float64) Clip {
	if rate <= 0 || c.SampleRate <= rate || len(c.Samples) == 0 {
		return c
	}
	ratio := c.SampleRate / rate
	n := int(math.Floor(float64(len(c.Samples)) / ratio))
	out := make([]float64, n)
	for i := range out {
		out[i] = c.Samples[min(len(c.Samples)-1, int(math.Round(float64(i)*ratio)))]
	}
	return Clip{Samples: out, SampleRate: rate}
}

// Upsample holds every sample until the next one is due. Clips already at
// or above rate are returned unchanged.
func (c Clip) Upsample(rate float64) Clip {
	if c.SampleRate <= 0 || c.SampleRate >= rate || len(c.Samples) == 0 {
		return c
	}
	n := int(math.Floor(float64(len(c.Samples)) * rate / c.SampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = c.Samples[min(len(c.Samples)-1, int(float64(i)*c.SampleRate/rate))]
	}
	return Clip{Samples: out, SampleRate: rate}
}

// Normalize scales the clip so its loudest sample reaches peak. A silent
// clip is returned unchanged.
func (c Clip) Normalize(peak float64) Clip {
	if len(c.Samples) == 0 {
		return c
	}
	loudest := math.Max(floats.Max(c.Samples), -floats.Min(c.Samples))
	if loudest == 0 {
		return c
	}
	out := append([]float64(nil), c.Samples...)
	floats.Scale(peak/loudest, out)
	return Clip{Samples: out, SampleRate: c.SampleRate}
}

func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / c.SampleRate
}

// SaveRaw writes the samples as little endian float32.
func (c Clip) SaveRaw(path string) error {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s)
	}
	return WriteBinary(path, out)
}

func float32s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
