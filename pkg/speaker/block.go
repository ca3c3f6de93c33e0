// ABOUTME: Fixed-capacity PCM sample block
// ABOUTME: The unit of transfer between receiver and output task
package speaker

import "fmt"

// SampleBlock is a bounded sequence of 32-bit PCM words holding the
// payload of one isochronous packet. Capacity never changes after
// construction; length varies per delivery.
type SampleBlock struct {
	words []int32
}

// NewSampleBlock returns an empty block holding up to capacity words.
func NewSampleBlock(capacity int) *SampleBlock {
	return &SampleBlock{words: make([]int32, 0, capacity)}
}

// Reset empties the block, keeping its storage.
func (b *SampleBlock) Reset() {
	b.words = b.words[:0]
}

// Append adds one word. Exceeding the capacity is a configuration
// invariant violation and panics; capacity is derived from the validated
// stream configuration, so a correct setup can never hit this.
func (b *SampleBlock) Append(w int32) {
	if len(b.words) == cap(b.words) {
		panic(fmt.Sprintf("speaker: sample block capacity %d exceeded", cap(b.words)))
	}
	b.words = append(b.words, w)
}

// Words returns the filled portion of the block. The slice is only
// valid until the block is released back to its channel.
func (b *SampleBlock) Words() []int32 {
	return b.words
}

// Len returns the current word count.
func (b *SampleBlock) Len() int { return len(b.words) }

// Cap returns the block capacity in words.
func (b *SampleBlock) Cap() int { return cap(b.words) }
