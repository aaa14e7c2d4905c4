package link

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/danmuck/spilink/internal/protocol/wire"
	"github.com/danmuck/spilink/internal/transport"
	"github.com/rs/zerolog/log"
)

// ChunkFunc receives one chunk of a streamed message. chunk is only valid for
// the duration of the call; messageSize is the declared total.
type ChunkFunc func(chunk []byte, messageSize uint32)

// Engine runs logical requests over a Transport. Operations hold the engine
// lock for their whole exchange, so concurrent callers are serialized rather
// than interleaved on the wire.
type Engine struct {
	mu    sync.Mutex
	t     transport.Transport
	cfg   Config
	rng   *rand.Rand
	sleep func(time.Duration)
}

func New(t transport.Transport, cfg Config) *Engine {
	return &Engine{
		t:     t,
		cfg:   cfg.WithDefaults(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
	}
}

// Close releases the underlying transport.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.Close()
}

// SendCommand encodes one command packet and hands it to the transport.
func (e *Engine) SendCommand(cmd messaging.Command, arg []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.send(cmd, arg); err != nil {
		return &RequestError{Op: "send_command", Cmd: cmd, Err: err}
	}
	return nil
}

// GetSize asks for the declared size of the next message or metadata block.
// cmd must be GetSize or GetMetaSize.
func (e *Engine) GetSize(cmd messaging.Command, stream string) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	size, err := e.getSize(cmd, stream)
	e.record("get_size", start, 0, err)
	return size, err
}

// GetMessage reads a body of exactly size bytes announced by a prior GetSize.
// For GetMetadata the trailing footer is unwrapped and its type returned.
func (e *Engine) GetMessage(cmd messaging.Command, stream string, size uint32) ([]byte, datatype.Type, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	body, dt, err := e.getMessage(cmd, stream, messaging.StreamArgument(stream), size)
	e.record("get_message", start, len(body), err)
	return body, dt, err
}

func (e *Engine) send(cmd messaging.Command, arg []byte) error {
	pkt, err := messaging.EncodeCommand(cmd, arg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	log.Debug().Str("cmd", cmd.String()).Int("arg_len", len(arg)).Msg("link.send")
	if err := e.t.Send(pkt[:]); err != nil {
		log.Warn().Err(err).Str("cmd", cmd.String()).Msg("link.send failed")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// receive reads one packet. A nil payload with a nil error means the peer
// had no data yet.
func (e *Engine) receive(buf *packet.Packet) ([]byte, error) {
	*buf = packet.Packet{}
	if err := e.t.Receive(buf[:]); err != nil {
		observability.RecordPacket("failed")
		log.Warn().Err(err).Msg("link.receive failed to recv packet")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	marker := packet.Classify(buf[:])
	observability.RecordPacket(marker.String())
	switch marker {
	case packet.MarkerEmpty:
		return nil, nil
	case packet.MarkerMalformed:
		log.Warn().Uint8("marker", buf[0]).Msg("link.receive got a half/non-sentinel packet")
		return nil, fmt.Errorf("%w: marker 0x%02x", ErrFraming, buf[0])
	}
	payload, err := packet.Parse(buf[:])
	if err != nil {
		log.Warn().Err(err).Msg("link.receive rejected packet")
		return nil, fmt.Errorf("%w: %w", ErrFraming, err)
	}
	return payload, nil
}

// exchange sends cmd and reads exactly one response packet. A no-data
// response yields a nil payload.
func (e *Engine) exchange(cmd messaging.Command, arg []byte) ([]byte, error) {
	if err := e.send(cmd, arg); err != nil {
		return nil, err
	}
	var buf packet.Packet
	return e.receive(&buf)
}

func (e *Engine) getSize(cmd messaging.Command, stream string) (uint32, error) {
	if !messaging.IsSizeCommand(cmd) {
		log.Error().Str("cmd", cmd.String()).Msg("link.getSize called with non-size command")
		return 0, &RequestError{Op: "get_size", Cmd: cmd, Stream: stream, Err: fmt.Errorf("%w: %s is not a size command", ErrUsage, cmd)}
	}
	payload, err := e.exchange(cmd, messaging.StreamArgument(stream))
	if err == nil && payload == nil {
		err = fmt.Errorf("%w: %w", ErrTransport, ErrNoData)
	}
	if err != nil {
		return 0, &RequestError{Op: "get_size", Cmd: cmd, Stream: stream, Err: err}
	}
	size, err := messaging.DecodeSize(payload)
	if err != nil {
		return 0, &RequestError{Op: "get_size", Cmd: cmd, Stream: stream, Err: fmt.Errorf("%w: %w", ErrFraming, err)}
	}
	log.Debug().Str("cmd", cmd.String()).Str("stream", stream).Uint32("size", size).Msg("link.getSize")
	return size, nil
}

func (e *Engine) checkAllocation(cmd messaging.Command, stream string, size uint32) error {
	if size > e.cfg.MaxMessageSize {
		log.Error().Str("stream", stream).Uint32("size", size).Msg("link: failed to allocate message buffer")
		return &RequestError{Op: "allocate", Cmd: cmd, Stream: stream,
			Err: fmt.Errorf("%w: %d > %d", ErrAllocation, size, e.cfg.MaxMessageSize)}
	}
	return nil
}

func (e *Engine) getMessage(cmd messaging.Command, stream string, arg []byte, size uint32) ([]byte, datatype.Type, error) {
	fail := func(err error) ([]byte, datatype.Type, error) {
		return nil, 0, &RequestError{Op: "get_message", Cmd: cmd, Stream: stream, Err: err}
	}
	if !messaging.IsMessageCommand(cmd) {
		log.Error().Str("cmd", cmd.String()).Msg("link.getMessage called with non-message command")
		return fail(fmt.Errorf("%w: %s is not a message command", ErrUsage, cmd))
	}
	if err := e.checkAllocation(cmd, stream, size); err != nil {
		return nil, 0, err
	}

	body := make([]byte, size)
	err := e.drain(cmd, arg, size, func(chunk []byte, off uint32) {
		copy(body[off:], chunk)
	})
	if err != nil {
		return fail(err)
	}
	if cmd != messaging.GetMetadata {
		return body, 0, nil
	}
	meta, dt, err := wire.DecodeFooter(body)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSizeMismatch, err))
	}
	return meta, dt, nil
}

// drain sends cmd once and consumes packets until size bytes have been
// delivered to emit, in order. It returns an error on any exit short of the
// declared size.
func (e *Engine) drain(cmd messaging.Command, arg []byte, size uint32, emit func(chunk []byte, off uint32)) error {
	if err := e.send(cmd, arg); err != nil {
		return err
	}
	var (
		buf      packet.Packet
		received uint32
		idle     int
		polls    int
	)
	for received < size {
		if polls%20 == 0 {
			log.Trace().Str("cmd", cmd.String()).Uint32("received", received).Uint32("size", size).Msg("link.drain progress")
		}
		polls++

		payload, err := e.receive(&buf)
		if err != nil {
			return err
		}
		if payload == nil {
			idle++
			if e.cfg.MaxIdlePolls > 0 && idle > e.cfg.MaxIdlePolls {
				log.Warn().Str("cmd", cmd.String()).Int("idle", idle).Msg("link.drain gave up waiting for data")
				return fmt.Errorf("%w: %d consecutive empty packets at %d/%d", ErrIdleLimit, idle, received, size)
			}
			if d := IdleDelay(e.cfg.IdleBackoff, idle, e.rng); d > 0 {
				e.sleep(d)
			}
			continue
		}
		idle = 0

		n := min(uint32(packet.PayloadMaxSize), size-received, uint32(len(payload)))
		if n == 0 {
			return fmt.Errorf("%w: empty chunk at %d/%d", ErrFraming, received, size)
		}
		emit(payload[:n], received)
		received += n
	}
	return nil
}

func (e *Engine) record(op string, start time.Time, bytes int, err error) {
	observability.RecordLinkRequest(op, Outcome(err), bytes, time.Since(start))
}
