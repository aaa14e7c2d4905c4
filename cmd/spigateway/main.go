package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/danmuck/spilink/internal/auth"
	"github.com/danmuck/spilink/internal/config"
	"github.com/danmuck/spilink/internal/gateway"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/spigateway/config.toml", "client config path")
	flag.Parse()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		observability.InitLogger("spigateway", "")
		log.Fatal().Err(err).Msg("failed to load gateway config")
	}
	observability.InitLogger("spigateway", cfg.LogLevel)
	log.Info().Str("path", *configPath).Msg("loaded gateway config")
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, cfg.Transport)
	if err != nil {
		log.Fatal().Err(err).Str("bridge", cfg.Transport.Address).Msg("failed to reach device bridge")
	}
	engine := link.New(conn, cfg.Link)
	defer engine.Close()

	var popAuth auth.Validator
	if cfg.PopToken != "" {
		popAuth = auth.StaticToken{Token: cfg.PopToken}
	}
	gw := gateway.New("spigateway", cfg.GatewayAddr, engine, cfg.CorsOrigins, popAuth)
	log.Info().Str("addr", cfg.GatewayAddr).Str("bridge", cfg.Transport.Address).Msg("gateway started")
	if err := gw.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
	log.Info().Msg("gateway shut down")
}
