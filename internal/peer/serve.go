package peer

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// Serve answers bridge connections from ln one at a time until ctx is done.
// Command frames go to dev.Send; each all-zero clock frame is answered with
// dev.Receive.
func Serve(ctx context.Context, ln net.Listener, dev *Device) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("peer.Serve host connected")
		if err := ServeConn(conn, dev); err != nil {
			log.Warn().Err(err).Msg("peer.Serve connection ended")
		}
	}
}

// ServeConn runs the bridge protocol on one connection until it closes.
func ServeConn(conn net.Conn, dev *Device) error {
	defer conn.Close()
	var in, out packet.Packet
	for {
		if _, err := io.ReadFull(conn, in[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch packet.Classify(in[:]) {
		case packet.MarkerValid:
			if err := dev.Send(in[:]); err != nil {
				return err
			}
		case packet.MarkerEmpty:
			if err := dev.Receive(out[:]); err != nil {
				return err
			}
			if _, err := conn.Write(out[:]); err != nil {
				return err
			}
		default:
			log.Warn().Uint8("marker", in[0]).Msg("peer.ServeConn ignored malformed frame")
		}
	}
}
