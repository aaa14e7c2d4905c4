package link

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/testutil/testlog"
)

func TestIdleDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 50 * time.Microsecond,
		Multiplier:   2.0,
		MaxDelay:     time.Millisecond,
	}
	if got := IdleDelay(cfg, 1, nil); got != 50*time.Microsecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := IdleDelay(cfg, 2, nil); got != 100*time.Microsecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := IdleDelay(cfg, 3, nil); got != 200*time.Microsecond {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := IdleDelay(cfg, 10, nil); got != time.Millisecond {
		t.Fatalf("attempt10 got=%v", got)
	}
}

func TestIdleDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Microsecond,
		Multiplier:   2.0,
		MaxDelay:     time.Millisecond,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := IdleDelay(cfg, 2, rng)
	if got < 100*time.Microsecond || got > 300*time.Microsecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestIdleDelayDisabled(t *testing.T) {
	testlog.Start(t)
	if got := IdleDelay(BackoffConfig{}, 5, nil); got != 0 {
		t.Fatalf("zero config should not sleep, got %v", got)
	}
}

func TestIdleDelayStaysUnderCeilingWithoutMaxDelay(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 50 * time.Microsecond, Multiplier: 2}
	for _, idle := range []int{1, 7, 64, 2000, 1 << 20} {
		got := IdleDelay(cfg, idle, nil)
		if got <= 0 || got > defaultIdleCeiling {
			t.Fatalf("idle=%d delay=%v outside (0, %v]", idle, got, defaultIdleCeiling)
		}
	}
	cfg.MaxDelay = time.Millisecond
	cfg.Jitter = true
	rng := rand.New(rand.NewSource(3))
	for idle := 1; idle < 200; idle++ {
		if got := IdleDelay(cfg, idle, rng); got > time.Millisecond {
			t.Fatalf("idle=%d jittered delay %v above ceiling", idle, got)
		}
	}
}

func TestIdleSleepsBoundedWhenMaxDelayUnset(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.IdleBackoff = BackoffConfig{InitialDelay: 50 * time.Microsecond, Multiplier: 2}
	e := New(&scripted{}, cfg)
	if e.cfg.IdleBackoff.MaxDelay != defaultIdleCeiling {
		t.Fatalf("expected ceiling %v, got %v", defaultIdleCeiling, e.cfg.IdleBackoff.MaxDelay)
	}
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, _, err := e.GetMessage(messaging.GetMessage, "color", 10)
	if !errors.Is(err, ErrIdleLimit) {
		t.Fatalf("expected ErrIdleLimit, got %v", err)
	}
	if len(slept) != cfg.MaxIdlePolls {
		t.Fatalf("expected %d sleeps, got %d", cfg.MaxIdlePolls, len(slept))
	}
	for i, d := range slept {
		if d <= 0 || d > defaultIdleCeiling {
			t.Fatalf("sleep %d = %v outside (0, %v]", i, d, defaultIdleCeiling)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{}.WithDefaults()
	if cfg.MaxIdlePolls != 4096 || cfg.MaxMessageSize != 64<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdleBackoff.InitialDelay != 0 {
		t.Fatalf("backoff must stay as given")
	}
	cfg = Config{MaxIdlePolls: -1, MaxMessageSize: 10}.WithDefaults()
	if cfg.MaxIdlePolls != -1 || cfg.MaxMessageSize != 10 {
		t.Fatalf("explicit limits overwritten: %+v", cfg)
	}
	cfg = Config{IdleBackoff: BackoffConfig{InitialDelay: time.Millisecond}}.WithDefaults()
	if cfg.IdleBackoff.MaxDelay != defaultIdleCeiling {
		t.Fatalf("enabled backoff left without ceiling: %+v", cfg.IdleBackoff)
	}
}
