package peer

import (
	"testing"
	"time"

	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/protocol/wire"
	"github.com/danmuck/spilink/internal/testutil/testlog"
)

func TestPublisherTypesAndCap(t *testing.T) {
	testlog.Start(t)
	streams := []string{"color", "detections", "sysinfo"}
	dev := NewDevice(Options{})
	for _, s := range streams {
		if err := dev.AddStream(s); err != nil {
			t.Fatalf("add stream: %v", err)
		}
	}
	p := NewPublisher(dev, streams, 300)
	p.MaxPending = 2
	now := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		if err := p.Tick(now); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	for _, s := range streams {
		if dev.Pending(s) != 2 {
			t.Fatalf("%s: expected 2 pending, got %d", s, dev.Pending(s))
		}
	}

	want := map[string]datatype.Type{
		"color":      datatype.TypeImgFrame,
		"detections": datatype.TypeImgDetections,
		"sysinfo":    datatype.TypeSystemInformation,
	}
	for stream, dt := range want {
		command(t, dev, messaging.GetMetadata, messaging.StreamArgument(stream))
		var footer []byte
		for chunk := next(t, dev); chunk != nil; chunk = next(t, dev) {
			footer = append(footer, chunk...)
		}
		meta, got, err := wire.DecodeFooter(footer)
		if err != nil {
			t.Fatalf("%s: decode footer: %v", stream, err)
		}
		if got != dt {
			t.Fatalf("%s: type %s want %s", stream, got, dt)
		}
		if _, err := datatype.Decode(got, meta); err != nil {
			t.Fatalf("%s: decode metadata: %v", stream, err)
		}
	}

	command(t, dev, messaging.GetSize, messaging.StreamArgument("color"))
	size, err := messaging.DecodeSize(next(t, dev))
	if err != nil || size != 300 {
		t.Fatalf("frame size=%d err=%v", size, err)
	}
}
