package device

import (
	"errors"
	"time"
)

// Device drives a full duplex mono stream. The callback receives the
// captured block in and fills out with the block to play, both of the same
// length. It runs on the device's goroutine and must not block.
type Device interface {
	Start(callback func(in, out []int32)) error
	Stop()
}

const BufferSize = 512

var ErrDeviceUnavailable = errors.New("audio device unavailable")

// period is how long one block of n samples lasts at sampleRate, 0 means
// no limit.
func period(sampleRate float64, n int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Second) / sampleRate)
}
