package decoder

import (
	"context"

	"Aethertone/pkg/spectrum"

	"go.uber.org/zap"
)

// Listen runs one listening session. It feeds every snapshot to a fresh
// Receiver until ctx is done or the stream closes, then flushes and
// returns whatever was still buffered. Completed messages are delivered
// through opts.Events.OnMessage as they end.
func Listen(ctx context.Context, snapshots <-chan spectrum.Snapshot, opts Options) Message {
	r := NewReceiver(opts)
	r.log.Info("listening")

	for {
		select {
		case <-ctx.Done():
			return r.stop("stopped")
		case snap, ok := <-snapshots:
			if !ok {
				return r.stop("stream closed")
			}
			r.Process(snap)
		}
	}
}

func (r *Receiver) stop(reason string) Message {
	msg := r.Flush()
	r.log.Info("listening ended", zap.String("reason", reason), zap.Int("buffered", msg.Len()))
	return msg
}
