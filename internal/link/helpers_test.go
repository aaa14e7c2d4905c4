package link

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/danmuck/spilink/internal/peer"
	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/danmuck/spilink/internal/transport"
)

// recorder wraps a transport and keeps the decoded commands it sends.
type recorder struct {
	transport.Transport
	cmds     []messaging.CommandRequest
	receives int
}

func (r *recorder) Send(pkt []byte) error {
	if payload, err := packet.Parse(pkt); err == nil {
		if req, err := messaging.DecodeCommand(payload); err == nil {
			r.cmds = append(r.cmds, req)
		}
	}
	return r.Transport.Send(pkt)
}

func (r *recorder) Receive(buf []byte) error {
	r.receives++
	return r.Transport.Receive(buf)
}

func (r *recorder) sent(cmd messaging.Command) int {
	n := 0
	for _, req := range r.cmds {
		if req.Command == cmd {
			n++
		}
	}
	return n
}

// scripted replays fixed receive results and answers no-data once exhausted.
type scripted struct {
	replies  []scriptedReply
	sends    int
	receives int
}

type scriptedReply struct {
	pkt packet.Packet
	err error
}

func (s *scripted) Send(pkt []byte) error {
	s.sends++
	return nil
}

func (s *scripted) Receive(buf []byte) error {
	i := s.receives
	s.receives++
	if i >= len(s.replies) {
		copy(buf, make([]byte, len(buf)))
		return nil
	}
	if s.replies[i].err != nil {
		return s.replies[i].err
	}
	copy(buf, s.replies[i].pkt[:])
	return nil
}

func (s *scripted) Close() error { return nil }

func chunkPackets(t *testing.T, data []byte, chunk int) []scriptedReply {
	t.Helper()
	var out []scriptedReply
	for off := 0; off < len(data); off += chunk {
		p, err := packet.Encode(data[off:min(off+chunk, len(data))])
		if err != nil {
			t.Fatalf("encode chunk: %v", err)
		}
		out = append(out, scriptedReply{pkt: p})
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleBackoff = BackoffConfig{}
	cfg.MaxIdlePolls = 64
	return cfg
}

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func newDeviceEngine(t *testing.T, opts peer.Options, cfg Config) (*Engine, *peer.Device, *recorder) {
	t.Helper()
	dev := peer.NewDevice(opts)
	for _, name := range []string{"color", "detections", "sysinfo"} {
		if err := dev.AddStream(name); err != nil {
			t.Fatalf("add stream %s: %v", name, err)
		}
	}
	rec := &recorder{Transport: dev}
	return New(rec, cfg), dev, rec
}

func pushFrame(t *testing.T, dev *peer.Device, stream string, data []byte, seq int64) *datatype.ImgFrame {
	t.Helper()
	frame := &datatype.ImgFrame{
		Data:        data,
		Fb:          datatype.FrameSpecs{Width: uint32(len(data)), Height: 1, Stride: uint32(len(data)), BytesPP: 1},
		SequenceNum: seq,
	}
	if err := dev.Push(stream, frame); err != nil {
		t.Fatalf("push %s: %v", stream, err)
	}
	return frame
}

func mustEqualBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Fatalf("bytes mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}
