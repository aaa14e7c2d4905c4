package transport

import "errors"

var (
	ErrClosed       = errors.New("transport: closed")
	ErrPacketLength = errors.New("transport: packet length mismatch")
)

// Transport exchanges one packet per call. Send transmits one command packet;
// Receive fills buf with the next response packet. Any error is a transport
// failure and is not retried by callers.
type Transport interface {
	Send(pkt []byte) error
	Receive(buf []byte) error
	Close() error
}
