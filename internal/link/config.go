package link

import "time"

const defaultIdleCeiling = 5 * time.Millisecond

// BackoffConfig defines the sleep between consecutive no-data packets.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config bounds engine behavior.
type Config struct {
	// MaxIdlePolls caps consecutive no-data packets inside one message
	// transfer. Zero selects the default; negative disables the cap.
	MaxIdlePolls int
	IdleBackoff  BackoffConfig
	// MaxMessageSize is the largest declared size the engine will allocate.
	MaxMessageSize uint32
}

func DefaultConfig() Config {
	return Config{
		MaxIdlePolls: 4096,
		IdleBackoff: BackoffConfig{
			InitialDelay: 50 * time.Microsecond,
			Multiplier:   2.0,
			MaxDelay:     defaultIdleCeiling,
		},
		MaxMessageSize: 64 << 20,
	}
}

// WithDefaults fills zero-valued limits from DefaultConfig. A zero
// InitialDelay still disables sleeping, but an enabled backoff always gets a
// ceiling.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxIdlePolls == 0 {
		c.MaxIdlePolls = def.MaxIdlePolls
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.IdleBackoff.InitialDelay > 0 && c.IdleBackoff.MaxDelay <= 0 {
		c.IdleBackoff.MaxDelay = def.IdleBackoff.MaxDelay
	}
	return c
}
