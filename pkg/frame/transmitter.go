package frame

import (
	"context"
	"fmt"

	"Aethertone/pkg/async"
	"Aethertone/pkg/metrics"

	"go.uber.org/zap"
)

// Emitter plays a single tone and returns once it has finished sounding.
type Emitter interface {
	EmitTone(ctx context.Context, tone Tone) error
}

type Transmitter struct {
	Emitter  Emitter
	Protocol Protocol
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// OnProgress, if set, is called after every tone with the number of
	// tones played so far and the plan length.
	OnProgress func(sent, total int)
}

func (t *Transmitter) SendText(ctx context.Context, text string) error {
	tones, err := t.Protocol.TextPlan(text)
	if err != nil {
		return err
	}
	t.logger().Info("transmitting text", zap.Int("chars", len(tones)-len(Start)-len(End)),
		zap.Duration("airtime", Airtime(tones)))
	return t.Send(ctx, tones)
}

func (t *Transmitter) SendVoice(ctx context.Context, samples []float64) error {
	tones, err := t.Protocol.VoicePlan(samples)
	if err != nil {
		return err
	}
	t.logger().Info("transmitting voice", zap.Int("samples", len(samples)),
		zap.Int("sent", len(tones)-len(Start)-len(VoiceMarker)-len(End)),
		zap.Duration("airtime", Airtime(tones)))
	return t.Send(ctx, tones)
}

func (t *Transmitter) SendTextAsync(ctx context.Context, text string) <-chan error {
	return async.Promise(func() error {
		return t.SendText(ctx, text)
	})
}

// Send plays the tones one after another. Cancelling ctx prevents the
// remaining tones from starting but never interrupts the current one.
func (t *Transmitter) Send(ctx context.Context, tones []Tone) error {
	log := t.logger()
	for i, tone := range tones {
		if err := ctx.Err(); err != nil {
			log.Info("transmission stopped", zap.Int("sent", i), zap.Int("total", len(tones)))
			return fmt.Errorf("transmission stopped after %d of %d tones: %w", i, len(tones), err)
		}

		if err := t.Emitter.EmitTone(context.WithoutCancel(ctx), tone); err != nil {
			return fmt.Errorf("emit tone %d (%v): %w", i, tone, err)
		}
		t.Metrics.ToneEmitted()

		if i%10 == 0 {
			log.Debug("progress", zap.Int("sent", i+1), zap.Int("total", len(tones)),
				zap.Float64("freq", tone.Frequency))
		}
		if t.OnProgress != nil {
			t.OnProgress(i+1, len(tones))
		}
	}
	log.Info("transmission complete", zap.Int("tones", len(tones)))
	return nil
}

func (t *Transmitter) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger.Named("transmitter")
}
