package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// Conn bridges packets over a byte stream. Each Receive clocks one all-zero
// frame out and reads exactly one packet back, the way an SPI master clocks
// the slave's response.
type Conn struct {
	conn  net.Conn
	cfg   Config
	idle  packet.Packet
	mu    sync.Mutex
	close sync.Once
}

// NewConn wraps an established stream. cfg supplies per-packet deadlines.
func NewConn(conn net.Conn, cfg Config) *Conn {
	return &Conn{conn: conn, cfg: cfg.WithDefaults()}
}

// Dial connects to a bridge at cfg.Address, upgrading to TLS when enabled.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
	}
	if !cfg.TLS.Enabled {
		log.Debug().Str("addr", cfg.Address).Msg("transport.Dial connected")
		return NewConn(rawConn, cfg), nil
	}

	tlsCfg, err := cfg.ClientTLSConfig()
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("transport: tls handshake %s: %w", cfg.Address, err)
	}
	log.Debug().Str("addr", cfg.Address).Msg("transport.Dial connected with tls")
	return NewConn(conn, cfg), nil
}

func (c *Conn) Send(pkt []byte) error {
	if len(pkt) != packet.BuffMaxSize {
		return fmt.Errorf("%w: %d", ErrPacketLength, len(pkt))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(pkt)
}

func (c *Conn) Receive(buf []byte) error {
	if len(buf) != packet.BuffMaxSize {
		return fmt.Errorf("%w: %d", ErrPacketLength, len(buf))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(c.idle[:]); err != nil {
		return err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return fmt.Errorf("transport: set read deadline: %w", err)
	}
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return fmt.Errorf("transport: read packet: %w", err)
	}
	return nil
}

func (c *Conn) Close() error {
	err := ErrClosed
	c.close.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) write(b []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("transport: write packet: %w", err)
	}
	return nil
}
