// ABOUTME: Tests for the linear resampler
// ABOUTME: Covers identity passthrough, exact interpolation and duration preservation
package hostsim

import (
	"math"
	"testing"
)

// feedRamp supplies the resampler with a continuing word ramp and
// returns the produced words.
func feedRamp(t *testing.T, r *Resampler, outWords, calls int, next *int32) []int32 {
	t.Helper()
	var produced []int32
	for call := 0; call < calls; call++ {
		out := make([]int32, outWords)
		in := make([]int32, r.InputWordsNeeded(outWords))
		for i := range in {
			in[i] = *next
			*next++
		}
		n := r.Resample(in, out)
		if n != outWords {
			t.Fatalf("call %d: produced %d words, want %d", call, n, outWords)
		}
		produced = append(produced, out[:n]...)
	}
	return produced
}

func TestResamplerIdentity(t *testing.T) {
	r := NewResampler(48000, 48000, 2)
	next := int32(0)
	produced := feedRamp(t, r, 96, 5, &next)

	for i, v := range produced {
		if v != int32(i) {
			t.Fatalf("word %d: got %d, want %d", i, v, i)
		}
	}
}

func TestResamplerUpsampleInterpolates(t *testing.T) {
	// Doubling the rate on a linear ramp must yield the half-step ramp
	// exactly: even outputs hit input frames, odd outputs their
	// midpoints.
	r := NewResampler(24000, 48000, 2)

	next := 0
	var produced []int32
	for call := 0; call < 4; call++ {
		out := make([]int32, 96)
		in := make([]int32, r.InputWordsNeeded(len(out)))
		for i := 0; i < len(in); i += 2 {
			in[i] = int32(next * 1000)
			in[i+1] = int32(next*1000 + 7)
			next++
		}
		n := r.Resample(in, out)
		if n != len(out) {
			t.Fatalf("call %d: produced %d words, want %d", call, n, len(out))
		}
		produced = append(produced, out...)
	}

	for j := 0; j < len(produced)/2; j++ {
		want0 := int32(j * 500)
		want1 := int32(j*500 + 7)
		if produced[j*2] != want0 || produced[j*2+1] != want1 {
			t.Fatalf("frame %d: got (%d, %d), want (%d, %d)",
				j, produced[j*2], produced[j*2+1], want0, want1)
		}
	}
}

func TestResamplerPreservesDuration(t *testing.T) {
	// One second of output at 48 kHz must consume one second of input
	// at 44.1 kHz, give or take the boundary frames carried between
	// calls.
	r := NewResampler(44100, 48000, 2)

	const calls = 200
	const outWords = 480
	totalIn := 0
	for call := 0; call < calls; call++ {
		out := make([]int32, outWords)
		needed := r.InputWordsNeeded(outWords)
		in := make([]int32, needed)
		n := r.Resample(in, out)
		if n != outWords {
			t.Fatalf("call %d: produced %d words, want %d", call, n, outWords)
		}
		totalIn += needed
	}

	inFrames := float64(totalIn) / 2
	wantFrames := float64(calls*outWords/2) * 44100 / 48000
	if math.Abs(inFrames-wantFrames) > 8 {
		t.Errorf("consumed %.0f input frames for %d output frames, want about %.1f",
			inFrames, calls*outWords/2, wantFrames)
	}
}

func TestResamplerReset(t *testing.T) {
	r := NewResampler(44100, 48000, 2)

	out := make([]int32, 96)
	in := make([]int32, r.InputWordsNeeded(len(out)))
	r.Resample(in, out)

	// After a reset the resampler must ask for the same amount a fresh
	// one would.
	r.Reset()
	fresh := NewResampler(44100, 48000, 2)
	if got, want := r.InputWordsNeeded(96), fresh.InputWordsNeeded(96); got != want {
		t.Errorf("InputWordsNeeded after reset = %d, want %d", got, want)
	}
}
