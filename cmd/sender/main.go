package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"Aethertone/internal/callbacks"
	"Aethertone/internal/config"
	"Aethertone/internal/utils"
	"Aethertone/pkg/async"
	"Aethertone/pkg/frame"
	"Aethertone/pkg/modem"

	"go.uber.org/zap"
)

const usage = `usage: sender [-config file] <command> [args]

commands:
  text <message>             send a text message
  voice [-normalize] <clip>  send a wav, mp3 or raw float32 clip
  record [-o file]           record from the device into a raw clip
`

func main() {
	fs := flag.NewFlagSet("sender", flag.ExitOnError)
	configPath := fs.String("config", "", "yaml or toml config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-async.Exit()
		cancel()
	}()

	args := fs.Args()
	switch args[0] {
	case "text":
		err = sendText(ctx, cfg, log, strings.Join(args[1:], " "))
	case "voice":
		err = sendVoice(ctx, cfg, log, args[1:])
	case "record":
		err = record(ctx, cfg, log, args[1:])
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("sender failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// withTransmitter opens the configured device and runs f with a transmitter
// on top of it.
func withTransmitter(cfg *config.Config, log *zap.Logger, f func(*frame.Transmitter) error) error {
	dev, err := cfg.NewDevice(log)
	if err != nil {
		return err
	}
	layer := cfg.NewPhysicalLayer(dev, log, nil)
	if err := layer.Open(); err != nil {
		return err
	}
	defer layer.Close()
	return f(cfg.NewTransmitter(layer, log, nil))
}

func sendText(ctx context.Context, cfg *config.Config, log *zap.Logger, text string) error {
	// catch bad input before touching the device
	if _, err := cfg.FrameProtocol().TextPlan(text); err != nil {
		return err
	}
	return withTransmitter(cfg, log, func(tx *frame.Transmitter) error {
		return tx.SendText(ctx, text)
	})
}

func sendVoice(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("voice", flag.ExitOnError)
	normalize := fs.Bool("normalize", false, "scale the clip to full volume")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("voice: expected one clip")
	}

	clip, err := utils.LoadClip(fs.Arg(0), cfg.Voice.SampleRate)
	if err != nil {
		return err
	}
	clip = clip.Downsample(cfg.Voice.SampleRate)
	if *normalize {
		clip = clip.Normalize(1)
	}
	log.Info("clip loaded", zap.String("path", fs.Arg(0)),
		zap.Int("samples", len(clip.Samples)), zap.Float64("seconds", clip.Duration()))

	return withTransmitter(cfg, log, func(tx *frame.Transmitter) error {
		return tx.SendVoice(ctx, clip.Samples)
	})
}

func record(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	output := fs.String("o", "recording.f32", "raw float32 output file")
	fs.Parse(args)

	dev, err := cfg.NewDevice(log)
	if err != nil {
		return err
	}
	recorder := &callbacks.Recorder{Limit: int(cfg.Voice.Record.Seconds() * cfg.Device.SampleRate)}
	if err := dev.Start(recorder.Update); err != nil {
		return err
	}
	log.Info("recording", zap.Duration("length", cfg.Voice.Record))
	start := time.Now()

	select {
	case <-recorder.Done():
	case <-ctx.Done():
	}
	dev.Stop()

	clip := utils.Clip{
		Samples:    modem.Int32ToFloat64(recorder.Track()),
		SampleRate: cfg.Device.SampleRate,
	}.Downsample(cfg.Voice.SampleRate)
	if err := clip.SaveRaw(*output); err != nil {
		return err
	}
	log.Info("recording saved", zap.String("path", *output),
		zap.Int("samples", len(clip.Samples)), zap.Duration("elapsed", time.Since(start)))
	return nil
}
