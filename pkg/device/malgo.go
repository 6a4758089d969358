package device

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Malgo is a duplex device on the system's default capture and playback
// endpoints, mono signed 32 bit.
type Malgo struct {
	SampleRate float64
	Logger     *zap.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	in     []int32
	out    []int32
}

func (m *Malgo) Start(callback func(in, out []int32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil
	}

	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("malgo")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug(message)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	config := malgo.DefaultDeviceConfig(malgo.Duplex)
	config.Capture.Format = malgo.FormatS32
	config.Capture.Channels = 1
	config.Playback.Format = malgo.FormatS32
	config.Playback.Channels = 1
	config.SampleRate = uint32(m.SampleRate)
	config.PeriodSizeInFrames = BufferSize
	config.Alsa.NoMMap = 1

	onData := func(pOutput, pInput []byte, frameCount uint32) {
		n := int(frameCount)
		if cap(m.in) < n {
			m.in = alloci32(n)
			m.out = alloci32(n)
		}
		in, out := m.in[:n], m.out[:n]

		for i := range in {
			if 4*i+4 <= len(pInput) {
				in[i] = int32(binary.LittleEndian.Uint32(pInput[4*i:]))
			} else {
				in[i] = 0
			}
		}
		callback(in, out)
		for i, s := range out {
			if 4*i+4 > len(pOutput) {
				break
			}
			binary.LittleEndian.PutUint32(pOutput[4*i:], uint32(s))
		}
	}

	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	log.Info("device started", zap.Float64("sampleRate", m.SampleRate))
	m.ctx, m.device = ctx, device
	return nil
}

func (m *Malgo) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return
	}
	m.device.Uninit()
	_ = m.ctx.Uninit()
	m.ctx.Free()
	m.ctx, m.device = nil, nil
}
