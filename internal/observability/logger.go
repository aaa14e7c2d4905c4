package observability

import (
	"github.com/danmuck/spilink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger applies the runtime logging profile, then the level from
// config, and tags every event with app.
func InitLogger(app, level string) zerolog.Logger {
	logging.ConfigureRuntime()
	if level != "" {
		logging.SetLevel(level)
	}
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
