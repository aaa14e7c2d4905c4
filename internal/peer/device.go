package peer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/danmuck/spilink/internal/protocol/wire"
	"github.com/danmuck/spilink/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownStream = errors.New("peer: unknown stream")
	ErrStreamLimit   = errors.New("peer: stream limit reached")
)

// ReceiveHook observes every packet handed to the host. seq counts Receive
// calls from zero. Returning an error fails that Receive.
type ReceiveHook func(seq int, pkt *packet.Packet) error

// Options tunes how a Device answers.
type Options struct {
	// ChunkSize bounds the payload of each data packet. Zero means
	// packet.PayloadMaxSize.
	ChunkSize int
	// IdlePackets is the number of no-data packets returned before each
	// data chunk. Single-packet responses are never delayed.
	IdlePackets int
	OnReceive   ReceiveHook
}

// Device is an in-memory peripheral.
type Device struct {
	mu      sync.Mutex
	opts    Options
	streams map[string][]wire.Serializable
	pending []queued
	seq     int
}

type queued struct {
	pkt  packet.Packet
	idle int
}

var _ transport.Transport = (*Device)(nil)

func NewDevice(opts Options) *Device {
	if opts.ChunkSize <= 0 || opts.ChunkSize > packet.PayloadMaxSize {
		opts.ChunkSize = packet.PayloadMaxSize
	}
	return &Device{
		opts:    opts,
		streams: make(map[string][]wire.Serializable),
	}
}

// AddStream registers an empty stream. Adding an existing stream is a no-op.
func (d *Device) AddStream(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.streams[name]; ok {
		return nil
	}
	if len(d.streams) >= messaging.MaxStreams {
		return ErrStreamLimit
	}
	if len(name) >= messaging.MaxStreamNameSize {
		return fmt.Errorf("%w: %q", messaging.ErrStreamNameSize, name)
	}
	d.streams[name] = nil
	return nil
}

// Push queues obj at the tail of stream.
func (d *Device) Push(stream string, obj wire.Serializable) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.streams[stream]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	d.streams[stream] = append(q, obj)
	return nil
}

// Pending returns the number of queued messages on stream.
func (d *Device) Pending(stream string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams[stream])
}

func (d *Device) Streams() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamNames()
}

// Send accepts one command packet and queues the response packets.
func (d *Device) Send(pkt []byte) error {
	payload, err := packet.Parse(pkt)
	if err != nil {
		log.Warn().Err(err).Msg("peer.Device dropped malformed command packet")
		return nil
	}
	req, err := messaging.DecodeCommand(payload)
	if err != nil {
		log.Warn().Err(err).Msg("peer.Device dropped undecodable command")
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = d.pending[:0]
	if err := d.handle(req); err != nil {
		log.Warn().Err(err).Str("cmd", req.Command.String()).Str("stream", req.Stream()).Msg("peer.Device command not answered")
	}
	return nil
}

// Receive hands out the next response packet, or a no-data packet when none
// is queued.
func (d *Device) Receive(buf []byte) error {
	if len(buf) != packet.BuffMaxSize {
		return fmt.Errorf("%w: %d", transport.ErrPacketLength, len(buf))
	}
	d.mu.Lock()
	var pkt packet.Packet
	if len(d.pending) > 0 {
		if d.pending[0].idle > 0 {
			d.pending[0].idle--
		} else {
			pkt = d.pending[0].pkt
			d.pending = d.pending[1:]
		}
	}
	seq := d.seq
	d.seq++
	hook := d.opts.OnReceive
	d.mu.Unlock()

	if hook != nil {
		if err := hook(seq, &pkt); err != nil {
			return err
		}
	}
	copy(buf, pkt[:])
	return nil
}

func (d *Device) Close() error {
	return nil
}

func (d *Device) handle(req messaging.CommandRequest) error {
	switch req.Command {
	case messaging.GetStatus, messaging.PopMessages:
		if req.Command == messaging.PopMessages {
			for name := range d.streams {
				d.streams[name] = nil
			}
		}
		return d.queue(messaging.EncodeStatus(messaging.StatusSuccess))
	case messaging.GetStreams:
		body, err := messaging.EncodeStreams(d.streamNames())
		if err != nil {
			return err
		}
		return d.queue(body)
	case messaging.PopMessage:
		q, ok := d.streams[req.Stream()]
		if !ok || len(q) == 0 {
			return d.queue(messaging.EncodeStatus(messaging.StatusFailure))
		}
		d.streams[req.Stream()] = q[1:]
		return d.queue(messaging.EncodeStatus(messaging.StatusSuccess))
	}

	head, err := d.head(req.Stream())
	if err != nil {
		return err
	}
	switch req.Command {
	case messaging.GetSize:
		return d.queue(messaging.EncodeSize(uint32(len(head.Payload()))))
	case messaging.GetMetaSize:
		footer, err := wire.EncodeFooter(head)
		if err != nil {
			return err
		}
		return d.queue(messaging.EncodeSize(uint32(len(footer))))
	case messaging.GetMessage:
		return d.queueChunks(head.Payload())
	case messaging.GetMetadata:
		footer, err := wire.EncodeFooter(head)
		if err != nil {
			return err
		}
		return d.queueChunks(footer)
	case messaging.GetMessagePart:
		offset, size, err := req.Part()
		if err != nil {
			return err
		}
		data := head.Payload()
		if uint64(offset)+uint64(size) > uint64(len(data)) {
			// an empty frame ends the host's transfer instead of leaving it polling
			log.Warn().Str("stream", req.Stream()).Uint32("offset", offset).Uint32("size", size).Int("len", len(data)).
				Msg("peer.Device part out of range")
			return d.queue(nil)
		}
		return d.queueChunks(data[offset : offset+size])
	}
	return fmt.Errorf("peer: unhandled command %s", req.Command)
}

func (d *Device) head(stream string) (wire.Serializable, error) {
	q, ok := d.streams[stream]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("peer: stream %q empty", stream)
	}
	return q[0], nil
}

func (d *Device) queue(body []byte) error {
	return d.queueIdle(body, 0)
}

func (d *Device) queueIdle(body []byte, idle int) error {
	p, err := packet.Encode(body)
	if err != nil {
		return err
	}
	d.pending = append(d.pending, queued{pkt: p, idle: idle})
	return nil
}

func (d *Device) queueChunks(data []byte) error {
	for off := 0; off < len(data); off += d.opts.ChunkSize {
		end := min(off+d.opts.ChunkSize, len(data))
		if err := d.queueIdle(data[off:end], d.opts.IdlePackets); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) streamNames() []string {
	names := make([]string, 0, len(d.streams))
	for name := range d.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
