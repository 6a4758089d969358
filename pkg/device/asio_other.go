//go:build !windows

package device

import "fmt"

// ASIOMono is only available on windows, where ASIO drivers exist.
type ASIOMono struct {
	DeviceName string
	SampleRate float64
	InChannel  int
	OutChannel int
}

func (a *ASIOMono) Start(callback func(in, out []int32)) error {
	return fmt.Errorf("%w: asio %q requires windows", ErrDeviceUnavailable, a.DeviceName)
}

func (a *ASIOMono) Stop() {}
