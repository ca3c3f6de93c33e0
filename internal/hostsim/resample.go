// ABOUTME: Linear resampler for rate-converting file sources
// ABOUTME: Carries unconsumed boundary frames so chunked input resamples without loss
package hostsim

import "math"

// Resampler converts interleaved PCM between sample rates by linear
// interpolation. Input frames still needed for the next interpolation
// are carried across calls, so feeding it consecutive chunks of one
// stream yields the same samples as resampling the whole stream at
// once.
type Resampler struct {
	channels int
	ratio    float64

	// pos is the fractional read position in frames, relative to the
	// start of the carry.
	pos     float64
	carry   []int32
	scratch []int32
}

// NewResampler returns a resampler from inputRate to outputRate.
func NewResampler(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		channels: channels,
		ratio:    float64(inputRate) / float64(outputRate),
	}
}

// InputWordsNeeded returns how many fresh input words the next
// Resample call needs to produce outputWords.
func (r *Resampler) InputWordsNeeded(outputWords int) int {
	outputFrames := outputWords / r.channels
	carryFrames := len(r.carry) / r.channels
	total := int(math.Ceil(r.pos+float64(outputFrames)*r.ratio)) + 1
	frames := total - carryFrames
	if frames < 0 {
		frames = 0
	}
	return frames * r.channels
}

// Resample interpolates output frames from the carry plus input and
// returns the number of output words produced. Input frames at or past
// the final read position are retained for the next call.
func (r *Resampler) Resample(input, output []int32) int {
	carryFrames := len(r.carry) / r.channels
	total := carryFrames + len(input)/r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.pos)
		if idx+1 > total-1 {
			break
		}
		frac := r.pos - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := r.frameAt(input, idx, ch)
			s2 := r.frameAt(input, idx+1, ch)
			output[outIdx*r.channels+ch] = int32(float64(s1)*(1-frac) + float64(s2)*frac)
		}
		outIdx++
		r.pos += r.ratio
	}

	// Keep everything from the current read position onward.
	keepFrom := int(r.pos)
	if keepFrom > total-1 {
		keepFrom = total - 1
	}
	if keepFrom < 0 {
		keepFrom = 0
	}
	kept := r.scratch[:0]
	for f := keepFrom; f < total; f++ {
		for ch := 0; ch < r.channels; ch++ {
			kept = append(kept, r.frameAt(input, f, ch))
		}
	}
	r.carry, r.scratch = kept, r.carry[:0]
	r.pos -= float64(keepFrom)

	return outIdx * r.channels
}

// frameAt indexes the virtual carry-then-input frame sequence.
func (r *Resampler) frameAt(input []int32, frame, ch int) int32 {
	carryFrames := len(r.carry) / r.channels
	if frame < carryFrames {
		return r.carry[frame*r.channels+ch]
	}
	return input[(frame-carryFrames)*r.channels+ch]
}

// Reset clears the carried state.
func (r *Resampler) Reset() {
	r.pos = 0
	r.carry = r.carry[:0]
}
