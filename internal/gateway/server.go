package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/spilink/internal/auth"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Requester is the engine surface the gateway drives. *link.Engine
// satisfies it.
type Requester interface {
	GetStreams() ([]string, error)
	GetSize(cmd messaging.Command, stream string) (uint32, error)
	ReqData(stream string) (link.Data, error)
	ReqMetadata(stream string) (link.Metadata, error)
	ReqMessage(stream string) (link.Message, error)
	ReqDataPartial(stream string, offset, size uint32) (link.Data, error)
	ChunkMessage(stream string, fn link.ChunkFunc) error
	PopMessage(stream string) error
	PopMessages() error
}

var _ Requester = (*link.Engine)(nil)

type Gateway struct {
	ID       string
	Addr     string
	Appeared time.Time

	engine  Requester
	router  *gin.Engine
	popAuth auth.Validator
}

// New builds the router. popAuth guards the pop routes; nil leaves them open.
func New(id, addr string, engine Requester, corsOrigins []string, popAuth auth.Validator) *Gateway {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	g := &Gateway{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		engine:   engine,
		router:   r,
		popAuth:  popAuth,
	}
	g.registerRoutes()
	return g
}

func (g *Gateway) HTTPRouter() *gin.Engine {
	return g.router
}

// Serve listens on g.Addr until ctx is done, then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              g.Addr,
		Handler:           g.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("gateway", g.ID).Str("addr", g.Addr).Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, link.ErrUsage):
		return http.StatusBadRequest
	case errors.Is(err, link.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, link.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, link.ErrAllocation):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	c.Set(observability.OutcomeKey, link.Outcome(err))
	c.JSON(statusFor(err), gin.H{
		"error":   err.Error(),
		"outcome": link.Outcome(err),
	})
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
