// ABOUTME: Stream receiver decoding isochronous packets into sample blocks
// ABOUTME: Validates packet sizes and rides out alternate-setting cycles
package speaker

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/uaclink/uaclink-go/pkg/audio"
	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// Receiver drains the isochronous OUT endpoint into the block channel.
// Packets whose length is not a multiple of the sample width are
// dropped whole; a block becomes visible to the consumer only after
// every word is written.
type Receiver struct {
	stream bus.Stream
	ch     *BlockChannel
	width  int
	buf    []byte
	debug  bool

	packets  atomic.Uint64
	invalid  atomic.Uint64
	blocks   atomic.Uint64
	connects atomic.Uint64
}

// ReceiverStats holds receive counters.
type ReceiverStats struct {
	Packets  uint64
	Invalid  uint64
	Blocks   uint64
	Connects uint64
}

// NewReceiver returns a receiver for one stream endpoint. The packet
// buffer is sized from the stream configuration and reused across
// packets.
func NewReceiver(stream bus.Stream, ch *BlockChannel, cfg uac.StreamConfig, debug bool) *Receiver {
	return &Receiver{
		stream: stream,
		ch:     ch,
		width:  int(cfg.Width),
		buf:    make([]byte, cfg.MaxPacketBytes()),
		debug:  debug,
	}
}

// Run loops wait-for-connection, receive until disconnect. It returns
// when ctx ends. Disconnection is a normal transition, not a failure.
func (r *Receiver) Run(ctx context.Context) {
	for {
		if err := r.stream.WaitConnection(ctx); err != nil {
			return
		}
		r.connects.Add(1)
		log.Printf("Stream connected")

		err := r.receive(ctx)
		if errors.Is(err, bus.ErrDisconnected) {
			log.Printf("Stream disconnected")
			continue
		}
		if err != nil {
			return
		}
	}
}

// receive is the streaming inner loop. It returns ErrDisconnected when
// the host closes the alternate setting.
func (r *Receiver) receive(ctx context.Context) error {
	for {
		n, err := r.stream.ReadPacket(ctx, r.buf)
		if err != nil {
			return err
		}
		r.packets.Add(1)

		wordCount := n / r.width
		if wordCount*r.width != n {
			r.invalid.Add(1)
			if r.debug {
				log.Printf("Invalid stream packet size %d, skipped", n)
			}
			continue
		}

		block, err := r.ch.AcquireWrite(ctx)
		if err != nil {
			return err
		}
		block.Reset()
		for w := 0; w < wordCount; w++ {
			block.Append(audio.SampleLE(r.buf[w*r.width:], r.width))
		}
		r.ch.CommitWrite(block)
		r.blocks.Add(1)
	}
}

// Stats returns the receive counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Packets:  r.packets.Load(),
		Invalid:  r.invalid.Load(),
		Blocks:   r.blocks.Load(),
		Connects: r.connects.Load(),
	}
}
