// ABOUTME: Two-slot zero-copy handoff between receiver and output task
// ABOUTME: Slot ownership moves with the block pointer, never by locking
package speaker

import (
	"context"
	"time"
)

// BlockChannel hands SampleBlocks from a single producer to a single
// consumer through exactly two slots. A block pointer lives in the free
// channel, with the producer, in the filled channel, or with the
// consumer; ownership transfers with the pointer, so a slot is never
// read and written concurrently. Blocks arrive in commit order.
type BlockChannel struct {
	free   chan *SampleBlock
	filled chan *SampleBlock
}

// NewBlockChannel allocates the channel and its two blocks of the given
// word capacity.
func NewBlockChannel(blockCapacity int) *BlockChannel {
	c := &BlockChannel{
		free:   make(chan *SampleBlock, 2),
		filled: make(chan *SampleBlock, 2),
	}
	c.free <- NewSampleBlock(blockCapacity)
	c.free <- NewSampleBlock(blockCapacity)
	return c
}

// AcquireWrite blocks until a free slot is available and transfers it to
// the producer.
func (c *BlockChannel) AcquireWrite(ctx context.Context) (*SampleBlock, error) {
	select {
	case b := <-c.free:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CommitWrite publishes a filled block to the consumer. The producer
// must not touch the block afterwards.
func (c *BlockChannel) CommitWrite(b *SampleBlock) {
	c.filled <- b
}

// AcquireRead blocks until a committed block is available and transfers
// it to the consumer.
func (c *BlockChannel) AcquireRead(ctx context.Context) (*SampleBlock, error) {
	select {
	case b := <-c.filled:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PollRead waits up to timeout for a committed block. It returns nil
// without error when the timeout elapses; the caller proceeds without
// new data.
func (c *BlockChannel) PollRead(ctx context.Context, timeout time.Duration) (*SampleBlock, error) {
	select {
	case b := <-c.filled:
		return b, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReleaseRead returns a drained block to the producer side.
func (c *BlockChannel) ReleaseRead(b *SampleBlock) {
	b.Reset()
	c.free <- b
}

// Occupancy returns the number of committed blocks not yet acquired by
// the consumer.
func (c *BlockChannel) Occupancy() int {
	return len(c.filled)
}
