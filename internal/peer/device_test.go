package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/protocol/packet"
	"github.com/danmuck/spilink/internal/protocol/wire"
	"github.com/danmuck/spilink/internal/testutil/testlog"
)

func command(t *testing.T, dev *Device, cmd messaging.Command, arg []byte) {
	t.Helper()
	pkt, err := messaging.EncodeCommand(cmd, arg)
	if err != nil {
		t.Fatalf("encode %s: %v", cmd, err)
	}
	if err := dev.Send(pkt[:]); err != nil {
		t.Fatalf("send %s: %v", cmd, err)
	}
}

// next returns the payload of the next packet, or nil for a no-data packet.
func next(t *testing.T, dev *Device) []byte {
	t.Helper()
	var buf packet.Packet
	if err := dev.Receive(buf[:]); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if packet.Classify(buf[:]) == packet.MarkerEmpty {
		return nil
	}
	payload, err := packet.Parse(buf[:])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return append([]byte(nil), payload...)
}

func newTestDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	dev := NewDevice(opts)
	if err := dev.AddStream("color"); err != nil {
		t.Fatalf("add stream: %v", err)
	}
	return dev
}

func TestAddStreamLimits(t *testing.T) {
	testlog.Start(t)
	dev := NewDevice(Options{})
	for i := 0; i < messaging.MaxStreams; i++ {
		if err := dev.AddStream(fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("add stream %d: %v", i, err)
		}
	}
	if err := dev.AddStream("s0"); err != nil {
		t.Fatalf("re-adding a stream should be a no-op, got %v", err)
	}
	if err := dev.AddStream("extra"); !errors.Is(err, ErrStreamLimit) {
		t.Fatalf("expected ErrStreamLimit, got %v", err)
	}

	dev = NewDevice(Options{})
	if err := dev.AddStream("a-very-long-stream"); !errors.Is(err, messaging.ErrStreamNameSize) {
		t.Fatalf("expected ErrStreamNameSize, got %v", err)
	}
	if err := dev.Push("missing", &datatype.Buffer{}); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestSizeAndMessageResponses(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{ChunkSize: 4})
	frame := &datatype.ImgFrame{Data: []byte("0123456789"), SequenceNum: 3}
	if err := dev.Push("color", frame); err != nil {
		t.Fatalf("push: %v", err)
	}

	command(t, dev, messaging.GetSize, messaging.StreamArgument("color"))
	size, err := messaging.DecodeSize(next(t, dev))
	if err != nil || size != 10 {
		t.Fatalf("size=%d err=%v", size, err)
	}

	command(t, dev, messaging.GetMessage, messaging.StreamArgument("color"))
	var body []byte
	for _, want := range []int{4, 4, 2} {
		chunk := next(t, dev)
		if len(chunk) != want {
			t.Fatalf("chunk len %d want %d", len(chunk), want)
		}
		body = append(body, chunk...)
	}
	if string(body) != "0123456789" {
		t.Fatalf("unexpected body %q", body)
	}
	if next(t, dev) != nil {
		t.Fatalf("expected no-data after the last chunk")
	}

	footer, err := wire.EncodeFooter(frame)
	if err != nil {
		t.Fatalf("encode footer: %v", err)
	}
	command(t, dev, messaging.GetMetaSize, messaging.StreamArgument("color"))
	metaSize, err := messaging.DecodeSize(next(t, dev))
	if err != nil || int(metaSize) != len(footer) {
		t.Fatalf("meta size=%d want %d err=%v", metaSize, len(footer), err)
	}
}

func TestUnknownStreamIsNotAnswered(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{})
	command(t, dev, messaging.GetSize, messaging.StreamArgument("missing"))
	if next(t, dev) != nil {
		t.Fatalf("unknown stream should leave nothing queued")
	}
	command(t, dev, messaging.GetSize, messaging.StreamArgument("color"))
	if next(t, dev) != nil {
		t.Fatalf("empty stream should leave nothing queued")
	}
}

func TestMessagePart(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{})
	if err := dev.Push("color", &datatype.Buffer{Data: []byte("abcdefgh")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	command(t, dev, messaging.GetMessagePart, messaging.PartArgument("color", 2, 3))
	if got := next(t, dev); string(got) != "cde" {
		t.Fatalf("unexpected part %q", got)
	}
	command(t, dev, messaging.GetMessagePart, messaging.PartArgument("color", 6, 3))
	var buf packet.Packet
	if err := dev.Receive(buf[:]); err != nil {
		t.Fatalf("receive: %v", err)
	}
	payload, err := packet.Parse(buf[:])
	if err != nil {
		t.Fatalf("out of range part should be answered with an empty frame: %v", err)
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty frame, got %d bytes", len(payload))
	}
}

func TestIdlePacketsOnlyDelayChunks(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{IdlePackets: 2})
	if err := dev.Push("color", &datatype.Buffer{Data: []byte("xy")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	command(t, dev, messaging.GetSize, messaging.StreamArgument("color"))
	if next(t, dev) == nil {
		t.Fatalf("size reply must not be delayed")
	}
	command(t, dev, messaging.GetMessage, messaging.StreamArgument("color"))
	if next(t, dev) != nil || next(t, dev) != nil {
		t.Fatalf("expected two idle packets before the chunk")
	}
	if got := next(t, dev); string(got) != "xy" {
		t.Fatalf("unexpected chunk %q", got)
	}
}

func TestPopResponses(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{})
	command(t, dev, messaging.PopMessage, messaging.StreamArgument("color"))
	status, err := messaging.DecodeStatus(next(t, dev))
	if err != nil || status != messaging.StatusFailure {
		t.Fatalf("pop on empty stream: status=%d err=%v", status, err)
	}
	if err := dev.Push("color", &datatype.Buffer{Data: []byte{1}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	command(t, dev, messaging.PopMessages, messaging.StreamArgument(""))
	status, err = messaging.DecodeStatus(next(t, dev))
	if err != nil || status != messaging.StatusSuccess || dev.Pending("color") != 0 {
		t.Fatalf("pop all: status=%d err=%v pending=%d", status, err, dev.Pending("color"))
	}
}

func TestMalformedCommandIsDropped(t *testing.T) {
	testlog.Start(t)
	dev := newTestDevice(t, Options{})
	var raw packet.Packet
	raw[0] = 0x42
	if err := dev.Send(raw[:]); err != nil {
		t.Fatalf("send: %v", err)
	}
	if next(t, dev) != nil {
		t.Fatalf("malformed command should not be answered")
	}
	if err := dev.Receive(make([]byte, 10)); err == nil {
		t.Fatalf("expected packet length error")
	}
}

func TestReceiveHook(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("bus fault")
	dev := newTestDevice(t, Options{OnReceive: func(seq int, _ *packet.Packet) error {
		if seq == 1 {
			return boom
		}
		return nil
	}})
	var buf packet.Packet
	if err := dev.Receive(buf[:]); err != nil {
		t.Fatalf("receive 0: %v", err)
	}
	if err := dev.Receive(buf[:]); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, NewDevice(Options{})) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
