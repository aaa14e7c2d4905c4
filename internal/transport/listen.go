package transport

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// Listen opens the bridge side of cfg.Address, wrapping accepted
// connections in TLS when enabled.
func Listen(cfg Config) (net.Listener, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.Address, err)
	}
	if !cfg.TLS.Enabled {
		log.Info().Str("addr", ln.Addr().String()).Msg("transport.Listen ready")
		return ln, nil
	}
	tlsCfg, err := cfg.ServerTLSConfig()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	log.Info().Str("addr", ln.Addr().String()).Bool("mtls", cfg.TLS.Mutual).Msg("transport.Listen ready with tls")
	return tls.NewListener(ln, tlsCfg), nil
}
