package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/danmuck/spilink/internal/config"
	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/peer"
	"github.com/danmuck/spilink/internal/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "sim config path (defaults when empty)")
	flag.Parse()

	cfg := config.DefaultSimConfig()
	if *configPath != "" {
		loaded, err := config.LoadSimConfig(*configPath)
		if err != nil {
			observability.InitLogger("spisim", "")
			log.Fatal().Err(err).Msg("failed to load sim config")
		}
		cfg = loaded
	}
	observability.InitLogger("spisim", cfg.LogLevel)

	dev := peer.NewDevice(peer.Options{ChunkSize: cfg.ChunkSize, IdlePackets: cfg.IdlePackets})
	for _, name := range cfg.Streams {
		if err := dev.AddStream(name); err != nil {
			log.Fatal().Err(err).Str("stream", name).Msg("failed to add stream")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := transport.Listen(cfg.Transport)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bridge listener")
	}

	pub := peer.NewPublisher(dev, cfg.Streams, cfg.FrameSize)
	if interval := cfg.IntervalDuration(); interval > 0 {
		go func() {
			if err := pub.Run(ctx, interval); err != nil {
				log.Error().Err(err).Msg("publisher stopped")
			}
		}()
	}

	log.Info().Strs("streams", cfg.Streams).Str("addr", ln.Addr().String()).Msg("simulated device started")
	if err := peer.Serve(ctx, ln, dev); err != nil {
		log.Fatal().Err(err).Msg("simulated device stopped")
	}
	log.Info().Msg("simulated device shut down")
}
