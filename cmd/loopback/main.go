// Command loopback sends a message between two simulated nodes sharing one
// noisy channel and prints what the receiving node decoded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"Aethertone/internal/config"
	"Aethertone/internal/utils"
	"Aethertone/pkg/async"
	"Aethertone/pkg/decoder"
	"Aethertone/pkg/device"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "yaml or toml config file")
	text := flag.String("text", "Hello, world!", "text message to send")
	clipPath := flag.String("voice", "", "send this clip instead of text")
	noise := flag.Float64("noise", 0.01, "peak amplitude of the channel noise")
	seed := flag.Uint64("seed", 1, "noise seed")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	network := device.Network[string]{
		SampleRate: cfg.Device.SampleRate,
		Config: device.NetworkConfig[string]{
			{In: "air", Out: "air"},
			{In: "air", Out: "air"},
		},
		Noise: *noise,
		Seed:  *seed,
	}
	devs := network.Build()
	defer network.Stop()

	sender := cfg.NewPhysicalLayer(devs[0], log.Named("sender"), nil)
	receiver := cfg.NewPhysicalLayer(devs[1], log.Named("receiver"), nil)
	for _, l := range []interface{ Open() error }{sender, receiver} {
		if err := l.Open(); err != nil {
			log.Fatal("open", zap.Error(err))
		}
	}
	defer sender.Close()
	defer receiver.Close()

	var samples []float64
	if *clipPath != "" {
		clip, err := utils.LoadClip(*clipPath, cfg.Voice.SampleRate)
		if err != nil {
			log.Fatal("load clip", zap.Error(err))
		}
		samples = clip.Downsample(cfg.Voice.SampleRate).Samples
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-async.Exit()
		cancel()
	}()

	// stop listening once the message is through
	listenCtx, stopListening := context.WithCancel(ctx)
	opts := cfg.NewListenOptions(receiver.FrameDuration(), log.Named("receiver"), nil)
	var complete decoder.Message
	opts.Events.OnMessage = func(m decoder.Message) {
		if m.Complete {
			complete = m
			stopListening()
		}
	}

	tx := cfg.NewTransmitter(sender, log.Named("sender"), nil)
	start := time.Now()
	received, sendErr := async.Await2(async.Gather2(
		async.Promise(func() decoder.Message {
			partial := decoder.Listen(listenCtx, receiver.Listen(listenCtx), opts)
			if complete.Len() > 0 {
				return complete
			}
			return partial
		}),
		async.Promise(func() error {
			var err error
			if samples != nil {
				err = tx.SendVoice(ctx, samples)
			} else {
				err = tx.SendText(ctx, *text)
			}
			if err != nil {
				stopListening()
			} else {
				// give the receiver a moment to see END
				time.AfterFunc(time.Second, stopListening)
			}
			return err
		}),
	))
	if sendErr != nil {
		log.Fatal("send", zap.Error(sendErr))
	}

	fmt.Printf("%v in %v\n", received, time.Since(start).Round(time.Millisecond))
}
