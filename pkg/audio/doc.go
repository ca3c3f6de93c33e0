// ABOUTME: Audio fundamentals package for PCM word handling
// ABOUTME: Little-endian sample codecs, width conversion and clamps
// Package audio provides PCM word utilities shared by the stream path and
// the host tooling.
//
// The stream carries raw little-endian words of a fixed width; this package
// provides:
//   - SampleLE / PutSampleLE: width-aware little-endian word codecs with
//     sign extension
//   - SampleToInt16 / SampleFromInt16: 24-bit <-> 16-bit conversion for
//     playback backends
//   - Clamp24 / Clamp16: range limiting after gain arithmetic
//
// Example:
//
//	word := audio.SampleLE(packet[off:], 4)
//	audio.PutSampleLE(out[off:], word, 4)
package audio
