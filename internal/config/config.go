package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Aethertone/internal/logging"
	"Aethertone/pkg/decoder"
	"Aethertone/pkg/device"
	"Aethertone/pkg/frame"
	"Aethertone/pkg/layers"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/modem"
	"Aethertone/pkg/spectrum"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Device   DeviceConfig   `yaml:"device" toml:"device"`
	Protocol ProtocolConfig `yaml:"protocol" toml:"protocol"`
	Analyzer AnalyzerConfig `yaml:"analyzer" toml:"analyzer"`
	Decoder  DecoderConfig  `yaml:"decoder" toml:"decoder"`
	Voice    VoiceConfig    `yaml:"voice" toml:"voice"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	HTTP     HTTPConfig     `yaml:"http" toml:"http"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
}

type DeviceConfig struct {
	Kind       string  `yaml:"kind" toml:"kind"` // malgo, asio or loopback
	DeviceName string  `yaml:"device_name" toml:"device_name"`
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
	InChannel  int     `yaml:"in_channel" toml:"in_channel"`
	OutChannel int     `yaml:"out_channel" toml:"out_channel"`
}

type ProtocolConfig struct {
	Signature       time.Duration `yaml:"signature" toml:"signature"`
	Text            time.Duration `yaml:"text" toml:"text"`
	Voice           time.Duration `yaml:"voice" toml:"voice"`
	MaxVoiceSamples int           `yaml:"max_voice_samples" toml:"max_voice_samples"`
	MarkerTolerance float64       `yaml:"marker_tolerance" toml:"marker_tolerance"` // Hz

	Envelope struct {
		Attack time.Duration `yaml:"attack" toml:"attack"`
		Gain   float64       `yaml:"gain" toml:"gain"`
	} `yaml:"envelope" toml:"envelope"`
}

type AnalyzerConfig struct {
	FFTSize        int     `yaml:"fft_size" toml:"fft_size"`
	MinDecibels    float64 `yaml:"min_decibels" toml:"min_decibels"`
	MaxDecibels    float64 `yaml:"max_decibels" toml:"max_decibels"`
	Hop            int     `yaml:"hop" toml:"hop"` // samples between snapshots
	SnapshotBuffer int     `yaml:"snapshot_buffer" toml:"snapshot_buffer"`
}

type DecoderConfig struct {
	NoiseFloor int `yaml:"noise_floor" toml:"noise_floor"`
}

// VoiceConfig describes clips before they are encoded.
type VoiceConfig struct {
	SampleRate float64       `yaml:"sample_rate" toml:"sample_rate"` // clips are downsampled to this rate
	Record     time.Duration `yaml:"record" toml:"record"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// HTTPConfig is the receiver's server for /metrics and the /events
// websocket. An empty address disables it.
type HTTPConfig struct {
	Address string `yaml:"address" toml:"address"`
}

// StoreConfig points at the sqlite message history. An empty path disables
// it.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Default is the configuration used for every field a file leaves out.
func Default() *Config {
	c := &Config{
		Device: DeviceConfig{Kind: "malgo", SampleRate: 48000},
		Protocol: ProtocolConfig{
			Signature:       frame.DefaultTiming.Signature,
			Text:            frame.DefaultTiming.Text,
			Voice:           frame.DefaultTiming.Voice,
			MaxVoiceSamples: frame.DefaultTiming.MaxVoiceSamples,
			MarkerTolerance: frame.DefaultMarkerTolerance,
		},
		Analyzer: AnalyzerConfig{
			FFTSize:        spectrum.DefaultSize,
			MinDecibels:    spectrum.DefaultMinDecibels,
			MaxDecibels:    spectrum.DefaultMaxDecibels,
			Hop:            layers.DefaultHop,
			SnapshotBuffer: layers.DefaultSnapshotBuffer,
		},
		Decoder: DecoderConfig{NoiseFloor: spectrum.DefaultNoiseFloor},
		Voice:   VoiceConfig{SampleRate: 8000, Record: 2 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
	c.Protocol.Envelope.Attack = frame.DefaultEnvelope.Attack
	c.Protocol.Envelope.Gain = frame.DefaultEnvelope.Gain
	return c
}

// Load reads a yaml file, or a toml file when path ends in .toml.
func Load(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadTOML(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

func loadTOML(path string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := c.Protocol.Validate(); err != nil {
		return fmt.Errorf("protocol config: %w", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer config: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}
	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}
	if c.Voice.SampleRate > c.Device.SampleRate {
		return fmt.Errorf("voice sample_rate %v exceeds device sample_rate %v", c.Voice.SampleRate, c.Device.SampleRate)
	}
	return nil
}

func (d *DeviceConfig) Validate() error {
	switch d.Kind {
	case "malgo", "loopback":
	case "asio":
		if d.DeviceName == "" {
			return fmt.Errorf("device_name cannot be empty for asio")
		}
	default:
		return fmt.Errorf("kind must be malgo, asio or loopback, got %q", d.Kind)
	}
	if d.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000, got %v", d.SampleRate)
	}
	if d.InChannel < 0 || d.OutChannel < 0 {
		return fmt.Errorf("channels cannot be negative")
	}
	return nil
}

func (p *ProtocolConfig) Validate() error {
	if p.Signature <= 0 || p.Text <= 0 || p.Voice <= 0 {
		return fmt.Errorf("symbol durations must be positive")
	}
	if p.MaxVoiceSamples < 1 {
		return fmt.Errorf("max_voice_samples must be at least 1, got %d", p.MaxVoiceSamples)
	}
	// wider than this and the marker window swallows the signatures
	if p.MarkerTolerance <= 0 || p.MarkerTolerance >= 500 {
		return fmt.Errorf("marker_tolerance must be in (0, 500) Hz, got %v", p.MarkerTolerance)
	}
	if p.Envelope.Gain <= 0 || p.Envelope.Gain > 1 {
		return fmt.Errorf("envelope gain must be in (0, 1], got %v", p.Envelope.Gain)
	}
	if p.Envelope.Attack < 0 {
		return fmt.Errorf("envelope attack cannot be negative")
	}
	return nil
}

func (a *AnalyzerConfig) Validate() error {
	if a.FFTSize < 256 || a.FFTSize&(a.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two of at least 256, got %d", a.FFTSize)
	}
	if a.MinDecibels >= a.MaxDecibels {
		return fmt.Errorf("min_decibels must be below max_decibels")
	}
	if a.Hop < 1 || a.Hop > a.FFTSize {
		return fmt.Errorf("hop must be in [1, fft_size], got %d", a.Hop)
	}
	if a.SnapshotBuffer < 1 {
		return fmt.Errorf("snapshot_buffer must be at least 1, got %d", a.SnapshotBuffer)
	}
	return nil
}

func (d *DecoderConfig) Validate() error {
	if d.NoiseFloor < 1 || d.NoiseFloor > 255 {
		return fmt.Errorf("noise_floor must be in [1, 255], got %d", d.NoiseFloor)
	}
	return nil
}

func (v *VoiceConfig) Validate() error {
	if v.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %v", v.SampleRate)
	}
	if v.Record <= 0 {
		return fmt.Errorf("record must be positive, got %v", v.Record)
	}
	return nil
}

func (c *Config) NewLogger() (*zap.Logger, error) {
	return logging.New(c.Logging.Level, c.Logging.Format)
}

func (c *Config) NewDevice(log *zap.Logger) (device.Device, error) {
	switch c.Device.Kind {
	case "asio":
		return &device.ASIOMono{
			DeviceName: c.Device.DeviceName,
			SampleRate: c.Device.SampleRate,
			InChannel:  c.Device.InChannel,
			OutChannel: c.Device.OutChannel,
		}, nil
	case "loopback":
		return &device.Loopback{SampleRate: c.Device.SampleRate}, nil
	case "malgo":
		return &device.Malgo{SampleRate: c.Device.SampleRate, Logger: log}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", device.ErrDeviceUnavailable, c.Device.Kind)
}

func (c *Config) Timing() frame.Timing {
	return frame.Timing{
		Signature:       c.Protocol.Signature,
		Text:            c.Protocol.Text,
		Voice:           c.Protocol.Voice,
		MaxVoiceSamples: c.Protocol.MaxVoiceSamples,
	}
}

func (c *Config) FrameProtocol() frame.Protocol {
	return frame.Protocol{Timing: c.Timing(), MarkerTolerance: c.Protocol.MarkerTolerance}
}

func (c *Config) NewAnalyzer() *spectrum.Analyzer {
	return &spectrum.Analyzer{
		SampleRate:  c.Device.SampleRate,
		Size:        c.Analyzer.FFTSize,
		MinDecibels: c.Analyzer.MinDecibels,
		MaxDecibels: c.Analyzer.MaxDecibels,
	}
}

func (c *Config) NewModulator() modem.Modulator {
	return modem.Modulator{
		SampleRate: c.Device.SampleRate,
		Envelope:   frame.Envelope{Attack: c.Protocol.Envelope.Attack, Gain: c.Protocol.Envelope.Gain},
	}
}

func (c *Config) NewPhysicalLayer(dev device.Device, log *zap.Logger, m *metrics.Metrics) *layers.PhysicalLayer {
	return &layers.PhysicalLayer{
		Device:         dev,
		Modulator:      c.NewModulator(),
		Analyzer:       c.NewAnalyzer(),
		Hop:            c.Analyzer.Hop,
		SnapshotBuffer: c.Analyzer.SnapshotBuffer,
		Logger:         log,
		Metrics:        m,
	}
}

func (c *Config) NewTransmitter(emitter frame.Emitter, log *zap.Logger, m *metrics.Metrics) *frame.Transmitter {
	return &frame.Transmitter{
		Emitter:  emitter,
		Protocol: c.FrameProtocol(),
		Logger:   log,
		Metrics:  m,
	}
}

// NewListenOptions returns decoder options for snapshots taken every
// frameDuration. Events are left for the caller.
func (c *Config) NewListenOptions(frameDuration time.Duration, log *zap.Logger, m *metrics.Metrics) decoder.Options {
	return decoder.Options{
		NoiseFloor:      uint8(c.Decoder.NoiseFloor),
		MarkerTolerance: c.Protocol.MarkerTolerance,
		FrameDuration:   frameDuration,
		Timing:          c.Timing(),
		Logger:          log,
		Metrics:         m,
	}
}
