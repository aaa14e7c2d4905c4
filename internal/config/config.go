package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/transport"
)

// ClientConfig drives spictl and spigateway.
type ClientConfig struct {
	Transport   transport.Config
	Link        link.Config
	GatewayAddr string
	CorsOrigins []string
	// PopToken, when set, is the bearer token required by the gateway's
	// pop routes.
	PopToken string
	LogLevel string
}

// SimConfig drives spisim.
type SimConfig struct {
	Transport   transport.Config
	Streams     []string
	ChunkSize   int
	IdlePackets int
	FrameSize   int
	Interval    string
	LogLevel    string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Transport:   transport.DefaultConfig(),
		Link:        link.DefaultConfig(),
		GatewayAddr: ":8740",
		CorsOrigins: []string{"http://localhost:3000"},
		LogLevel:    "info",
	}
}

func DefaultSimConfig() SimConfig {
	cfg := transport.DefaultConfig()
	cfg.Address = ":7400"
	return SimConfig{
		Transport: cfg,
		Streams:   []string{"color", "detections", "sysinfo"},
		FrameSize: 4096,
		Interval:  "100ms",
		LogLevel:  "info",
	}
}

// bridge settings shared by both kinds.
type bridgeFile struct {
	Addr           string `toml:"addr"`
	ConnectTimeout string `toml:"connect_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	SecurityMode   string `toml:"security_mode"`
	TLSEnabled     bool   `toml:"tls_enabled"`
	TLSMutual      bool   `toml:"tls_mutual"`
	TLSCertFile    string `toml:"tls_cert_file"`
	TLSKeyFile     string `toml:"tls_key_file"`
	TLSCAFile      string `toml:"tls_ca_file"`
	TLSServerName  string `toml:"tls_server_name"`
	LogLevel       string `toml:"log_level"`
}

type clientFile struct {
	bridgeFile
	MaxIdlePolls      int      `toml:"max_idle_polls"`
	IdleBackoff       string   `toml:"idle_backoff"`
	IdleBackoffMax    string   `toml:"idle_backoff_max"`
	IdleBackoffFactor float64  `toml:"idle_backoff_multiplier"`
	IdleBackoffJitter bool     `toml:"idle_backoff_jitter"`
	MaxMessageSize    uint32   `toml:"max_message_size"`
	GatewayAddr       string   `toml:"gateway_addr"`
	CorsOrigins       []string `toml:"cors_origins"`
	PopToken          string   `toml:"pop_token"`
}

type simFile struct {
	bridgeFile
	Streams     []string `toml:"streams"`
	ChunkSize   int      `toml:"chunk_size"`
	IdlePackets int      `toml:"idle_packets"`
	FrameSize   int      `toml:"frame_size"`
	Interval    string   `toml:"interval"`
}

// LoadClientConfig overlays the keys present in path onto DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if err := applyBridge(meta, raw.bridgeFile, &cfg.Transport, &cfg.LogLevel); err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if err := applyLink(meta, raw, &cfg.Link); err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if meta.IsDefined("gateway_addr") {
		cfg.GatewayAddr = strings.TrimSpace(raw.GatewayAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("pop_token") {
		cfg.PopToken = strings.TrimSpace(raw.PopToken)
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	cfg.Link = cfg.Link.WithDefaults()
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// LoadSimConfig overlays the keys present in path onto DefaultSimConfig.
func LoadSimConfig(path string) (SimConfig, error) {
	cfg := DefaultSimConfig()
	var raw simFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return SimConfig{}, fmt.Errorf("load sim config: %w", err)
	}
	if err := applyBridge(meta, raw.bridgeFile, &cfg.Transport, &cfg.LogLevel); err != nil {
		return SimConfig{}, fmt.Errorf("load sim config: %w", err)
	}
	if meta.IsDefined("streams") {
		cfg.Streams = raw.Streams
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("idle_packets") {
		cfg.IdlePackets = raw.IdlePackets
	}
	if meta.IsDefined("frame_size") {
		cfg.FrameSize = raw.FrameSize
	}
	if meta.IsDefined("interval") {
		cfg.Interval = strings.TrimSpace(raw.Interval)
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	if err := ValidateSimConfig(cfg); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Transport.Address) == "" {
		return fmt.Errorf("client config missing addr")
	}
	if err := cfg.Transport.ValidateClient(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if strings.TrimSpace(cfg.GatewayAddr) == "" {
		return fmt.Errorf("client config missing gateway_addr")
	}
	if cfg.Link.MaxMessageSize == 0 {
		return fmt.Errorf("client config max_message_size must be positive")
	}
	return nil
}

func ValidateSimConfig(cfg SimConfig) error {
	if strings.TrimSpace(cfg.Transport.Address) == "" {
		return fmt.Errorf("sim config missing addr")
	}
	if err := cfg.Transport.ValidateServer(); err != nil {
		return fmt.Errorf("sim config: %w", err)
	}
	if len(cfg.Streams) == 0 {
		return fmt.Errorf("sim config requires at least one stream")
	}
	if len(cfg.Streams) > messaging.MaxStreams {
		return fmt.Errorf("sim config: %d streams exceeds limit %d", len(cfg.Streams), messaging.MaxStreams)
	}
	for i, name := range cfg.Streams {
		if name == "" || len(name) >= messaging.MaxStreamNameSize {
			return fmt.Errorf("stream[%d] invalid name %q", i, name)
		}
	}
	if cfg.ChunkSize < 0 || cfg.IdlePackets < 0 || cfg.FrameSize < 0 {
		return fmt.Errorf("sim config sizes must not be negative")
	}
	if _, err := parseDuration("interval", cfg.Interval); err != nil {
		return err
	}
	return nil
}
