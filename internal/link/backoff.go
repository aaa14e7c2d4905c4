package link

import (
	"math"
	"math/rand"
	"time"
)

// IdleDelay returns the sleep before the next poll once idle consecutive
// no-data packets have been seen. The result never exceeds the ceiling.
func IdleDelay(cfg BackoffConfig, idle int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 || idle < 1 {
		return 0
	}
	ceiling := cfg.ceiling()
	delay := float64(cfg.InitialDelay)
	if cfg.Multiplier > 1 {
		delay *= math.Pow(cfg.Multiplier, float64(idle-1))
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	if math.IsNaN(delay) || delay >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(delay)
}

// ceiling is MaxDelay, or defaultIdleCeiling when none is set.
func (b BackoffConfig) ceiling() time.Duration {
	if b.MaxDelay > 0 {
		return b.MaxDelay
	}
	return defaultIdleCeiling
}
