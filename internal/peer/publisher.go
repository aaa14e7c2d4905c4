package peer

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

// Publisher fills a Device with synthetic messages. The object kind follows
// the stream name: "detections" and "sysinfo" prefixes get their own types,
// everything else carries ImgFrames.
type Publisher struct {
	Device     *Device
	Streams    []string
	FrameSize  int
	MaxPending int

	seq int64
	rng *rand.Rand
}

func NewPublisher(dev *Device, streams []string, frameSize int) *Publisher {
	return &Publisher{
		Device:     dev,
		Streams:    streams,
		FrameSize:  frameSize,
		MaxPending: 8,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Tick pushes one message to every stream below MaxPending.
func (p *Publisher) Tick(now time.Time) error {
	p.seq++
	for _, stream := range p.Streams {
		if p.MaxPending > 0 && p.Device.Pending(stream) >= p.MaxPending {
			continue
		}
		if err := p.Device.Push(stream, p.message(stream, now)); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := p.Tick(now); err != nil {
				log.Error().Err(err).Msg("peer.Publisher tick failed")
				return err
			}
		}
	}
}

func (p *Publisher) message(stream string, now time.Time) wire.Serializable {
	ts := datatype.Timestamp{Sec: now.Unix(), Nsec: int64(now.Nanosecond())}
	switch {
	case strings.HasPrefix(stream, "detections"):
		n := 1 + p.rng.Intn(4)
		dets := make([]datatype.ImgDetection, n)
		for i := range dets {
			x, y := p.rng.Float32()*0.8, p.rng.Float32()*0.8
			dets[i] = datatype.ImgDetection{
				Label:      uint32(p.rng.Intn(80)),
				Confidence: 0.5 + p.rng.Float32()/2,
				XMin:       x, YMin: y, XMax: x + 0.2, YMax: y + 0.2,
			}
		}
		return &datatype.ImgDetections{Detections: dets, SequenceNum: p.seq, Ts: ts, TsDevice: ts}
	case strings.HasPrefix(stream, "sysinfo"):
		return &datatype.SystemInformation{
			DdrMemoryUsage:  datatype.MemoryInfo{Used: 96 << 20, Total: 512 << 20, Remaining: 416 << 20},
			CmxMemoryUsage:  datatype.MemoryInfo{Used: 1 << 20, Total: 2 << 20, Remaining: 1 << 20},
			ChipTemperature: 40 + p.rng.Float32()*10,
			CPUUsage:        p.rng.Float32(),
		}
	default:
		data := make([]byte, p.FrameSize)
		p.rng.Read(data)
		return &datatype.ImgFrame{
			Data:        data,
			Fb:          datatype.FrameSpecs{Width: uint32(p.FrameSize), Height: 1, Stride: uint32(p.FrameSize), BytesPP: 1},
			SequenceNum: p.seq,
			Ts:          ts,
			TsDevice:    ts,
		}
	}
}
