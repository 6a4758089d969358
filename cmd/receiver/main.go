package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"Aethertone/internal/callbacks"
	"Aethertone/internal/config"
	"Aethertone/internal/events"
	"Aethertone/internal/store"
	"Aethertone/internal/utils"
	"Aethertone/pkg/async"
	"Aethertone/pkg/codec"
	"Aethertone/pkg/decoder"
	"Aethertone/pkg/device"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/modem"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "yaml or toml config file")
	save := flag.String("save", "", "write the last voice message to this raw float32 file")
	play := flag.Bool("play", false, "play the last voice message back after listening")
	history := flag.Int("history", 0, "print the last n stored messages and exit")
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

	var db *store.DB
	if cfg.Store.Path != "" {
		if db, err = store.Open(cfg.Store.Path); err != nil {
			log.Fatal("open store", zap.Error(err))
		}
		defer db.Close()
	}

	if *history > 0 {
		if db == nil {
			log.Fatal("no store configured")
		}
		printHistory(db, *history)
		return
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bus := events.NewBus()
	if cfg.HTTP.Address != "" {
		go serve(cfg.HTTP.Address, reg, bus, log)
	}

	dev, err := cfg.NewDevice(log)
	if err != nil {
		log.Fatal("device", zap.Error(err))
	}
	layer := cfg.NewPhysicalLayer(dev, log, m)
	if err := layer.Open(); err != nil {
		log.Fatal("open physical layer", zap.Error(err))
	}

	var lastVoice decoder.Message
	opts := cfg.NewListenOptions(layer.FrameDuration(), log, m)
	opts.Events = bus.Attach(decoder.Events{
		OnSymbol: func(s codec.Symbol) {
			if s.Mode == codec.Text {
				fmt.Printf("%c", s.Char())
			}
		},
		OnMessage: func(msg decoder.Message) {
			fmt.Println()
			log.Info("message received", zap.Stringer("message", msg))
			if msg.Mode == codec.Voice {
				lastVoice = msg
			}
			record(db, msg, log)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-async.EnterKey():
		case <-async.Exit():
		}
		cancel()
	}()

	fmt.Println("listening, press enter to stop")
	// a trailing partial message goes through OnMessage as well
	decoder.Listen(ctx, layer.Listen(ctx), opts)
	layer.Close()

	if lastVoice.Len() == 0 {
		return
	}
	clip := utils.Clip{Samples: lastVoice.Samples(), SampleRate: cfg.Voice.SampleRate}
	if *save != "" {
		if err := clip.SaveRaw(*save); err != nil {
			log.Error("save voice", zap.Error(err))
		} else {
			log.Info("voice saved", zap.String("path", *save))
		}
	}
	if *play {
		playback(dev, clip.Upsample(cfg.Device.SampleRate), log)
	}
}

func record(db *store.DB, msg decoder.Message, log *zap.Logger) {
	if db == nil {
		return
	}
	if _, err := db.SaveMessage(msg, time.Now()); err != nil {
		log.Error("store message", zap.Error(err))
	}
}

func printHistory(db *store.DB, n int) {
	records, err := db.Recent(n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, r := range records {
		fmt.Printf("%s  %v\n", r.ReceivedAt.Format(time.DateTime), r.Message())
	}
}

func serve(addr string, reg *prometheus.Registry, bus *events.Bus, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/events", events.Handler(bus, log))

	log.Info("serving", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server", zap.Error(err))
	}
}

func playback(dev device.Device, clip utils.Clip, log *zap.Logger) {
	player := &callbacks.Player{Track: modem.Float64ToInt32(clip.Samples)}
	if err := dev.Start(player.Update); err != nil {
		log.Error("playback", zap.Error(err))
		return
	}
	log.Info("playing voice message", zap.Float64("seconds", clip.Duration()))
	<-player.Done()
	// the last buffer is still in flight when Done closes
	time.Sleep(100 * time.Millisecond)
	dev.Stop()
}
