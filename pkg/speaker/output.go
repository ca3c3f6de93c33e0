// ABOUTME: Audio output task draining blocks into the playback sink
// ABOUTME: Half-buffer lockstep with width shift, smoothing queue and underrun policy
package speaker

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/uaclink/uaclink-go/pkg/audio/sink"
)

// UnderrunPolicy selects what fills the output tail when not enough
// samples are available within the period deadline.
type UnderrunPolicy int

const (
	// UnderrunReuse leaves the previous period's contents in place.
	UnderrunReuse UnderrunPolicy = iota

	// UnderrunSilence zero-fills the unfilled tail.
	UnderrunSilence
)

func (p UnderrunPolicy) String() string {
	switch p {
	case UnderrunReuse:
		return "reuse"
	case UnderrunSilence:
		return "silence"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseUnderrunPolicy maps a flag value to a policy.
func ParseUnderrunPolicy(s string) (UnderrunPolicy, error) {
	switch s {
	case "reuse":
		return UnderrunReuse, nil
	case "silence":
		return UnderrunSilence, nil
	default:
		return 0, fmt.Errorf("speaker: unknown underrun policy %q", s)
	}
}

// OutputConfig sizes the output task.
type OutputConfig struct {
	// PeriodWords is the sink half-buffer size in sample words.
	PeriodWords int

	// SinkBits is the sink's native word width. Incoming 32-bit words
	// are arithmetic-shifted down to it, discarding low-order bytes.
	SinkBits int

	// QueueWords is the smoothing queue capacity.
	QueueWords int

	// Timeout bounds the per-period wait for a committed block.
	Timeout time.Duration

	Policy UnderrunPolicy
}

// OutputStats holds output counters.
type OutputStats struct {
	Periods        uint64
	Underruns      uint64
	SamplesQueued  uint64
	SamplesDropped uint64
	SinkErrors     uint64
	QueueDepth     int
}

// OutputTask moves committed blocks into the sink in lockstep with its
// half-buffer period. The period read paces the loop; the bounded block
// wait keeps an empty channel from ever stalling the sink deadline.
type OutputTask struct {
	ch      *BlockChannel
	snk     sink.Sink
	shift   uint
	queue   *sampleQueue
	policy  UnderrunPolicy
	timeout time.Duration

	readBuf  []int32
	writeBuf []int32

	periods    atomic.Uint64
	underruns  atomic.Uint64
	queued     atomic.Uint64
	dropped    atomic.Uint64
	sinkErrors atomic.Uint64
	depth      atomic.Int64
}

// NewOutputTask returns an output task for one sink. The write buffer
// persists across periods so the reuse policy can leave residual
// contents in place.
func NewOutputTask(ch *BlockChannel, snk sink.Sink, cfg OutputConfig) *OutputTask {
	return &OutputTask{
		ch:       ch,
		snk:      snk,
		shift:    uint(32 - cfg.SinkBits),
		queue:    newSampleQueue(cfg.QueueWords),
		policy:   cfg.Policy,
		timeout:  cfg.Timeout,
		readBuf:  make([]int32, cfg.PeriodWords),
		writeBuf: make([]int32, cfg.PeriodWords),
	}
}

// Run executes period cycles until ctx ends.
func (t *OutputTask) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		// The capture read paces the loop; its data is discarded in
		// this playback-only configuration.
		if err := t.snk.ReadFrame(t.readBuf); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.sinkErrors.Add(1)
			log.Printf("Sink read error: %v", err)
		}

		block, err := t.ch.PollRead(ctx, t.timeout)
		if err != nil {
			return
		}
		if block != nil {
			for _, w := range block.Words() {
				if t.queue.push(w >> t.shift) {
					t.queued.Add(1)
				} else {
					t.dropped.Add(1)
				}
			}
			t.ch.ReleaseRead(block)
		}

		n := t.queue.popInto(t.writeBuf)
		if n < len(t.writeBuf) {
			t.underruns.Add(1)
			if t.policy == UnderrunSilence {
				for i := n; i < len(t.writeBuf); i++ {
					t.writeBuf[i] = 0
				}
			}
		}
		t.depth.Store(int64(t.queue.depth()))

		if err := t.snk.WriteFrame(t.writeBuf); err != nil {
			t.sinkErrors.Add(1)
			log.Printf("Sink write error: %v", err)
		}
		t.periods.Add(1)
	}
}

// Stats returns the output counters.
func (t *OutputTask) Stats() OutputStats {
	return OutputStats{
		Periods:        t.periods.Load(),
		Underruns:      t.underruns.Load(),
		SamplesQueued:  t.queued.Load(),
		SamplesDropped: t.dropped.Load(),
		SinkErrors:     t.sinkErrors.Load(),
		QueueDepth:     int(t.depth.Load()),
	}
}

// sampleQueue is a fixed-capacity FIFO ring of sample words absorbing
// the jitter between packet arrival and fixed-period consumption. It is
// used from the output goroutine only, no locking.
type sampleQueue struct {
	buf   []int32
	head  int
	tail  int
	count int
}

func newSampleQueue(capacity int) *sampleQueue {
	return &sampleQueue{buf: make([]int32, capacity)}
}

// push appends one word, rejecting it when the queue is full.
func (q *sampleQueue) push(w int32) bool {
	if q.count == len(q.buf) {
		return false
	}
	q.buf[q.tail] = w
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	return true
}

// popInto fills dst from the front of the queue and returns the number
// of words written.
func (q *sampleQueue) popInto(dst []int32) int {
	n := 0
	for n < len(dst) && q.count > 0 {
		dst[n] = q.buf[q.head]
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		n++
	}
	return n
}

func (q *sampleQueue) depth() int { return q.count }
