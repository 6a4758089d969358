//go:build windows

package device

import (
	"fmt"

	"github.com/xsjk/go-asio"
)

// ASIOMono opens an ASIO driver and exposes one input and one output
// channel of it.
type ASIOMono struct {
	DeviceName string
	SampleRate float64
	InChannel  int
	OutChannel int
	device     asio.Device
}

func (a *ASIOMono) Start(callback func(in, out []int32)) error {
	if a.DeviceName == "" {
		return fmt.Errorf("%w: no asio driver name", ErrDeviceUnavailable)
	}
	a.device.Load(a.DeviceName)
	a.device.SetSampleRate(a.SampleRate)
	a.device.Open()
	a.device.Start(func(in, out [][]int32) {
		if a.InChannel >= len(in) || a.OutChannel >= len(out) {
			return
		}
		callback(in[a.InChannel], out[a.OutChannel])
	})
	return nil
}

func (a *ASIOMono) Stop() {
	a.device.Stop()
	a.device.Close()
	a.device.Unload()
}
