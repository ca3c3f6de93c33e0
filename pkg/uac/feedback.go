// ABOUTME: 10.14 fixed-point feedback value encoding
// ABOUTME: Packs and parses the 3-byte little-endian wire format
package uac

import "fmt"

// FeedbackShift is the fractional bit count of the full-speed 10.14
// feedback format.
const FeedbackShift = 14

// FeedbackPacketSize is the wire size of one feedback value in bytes.
const FeedbackPacketSize = 3

// PutFeedback packs the low three bytes of a 10.14 feedback value
// little-endian into dst. dst must be at least FeedbackPacketSize long.
func PutFeedback(dst []byte, value uint32) {
	_ = dst[2]
	dst[0] = byte(value)
	dst[1] = byte(value >> 8)
	dst[2] = byte(value >> 16)
}

// ParseFeedback reads a 3-byte little-endian 10.14 feedback packet.
func ParseFeedback(p []byte) (uint32, error) {
	if len(p) != FeedbackPacketSize {
		return 0, fmt.Errorf("uac: feedback packet size %d, want %d", len(p), FeedbackPacketSize)
	}
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16, nil
}

// FeedbackSamplesPerFrame converts a 10.14 feedback value to samples
// per USB frame.
func FeedbackSamplesPerFrame(value uint32) float64 {
	return float64(value) / float64(uint32(1)<<FeedbackShift)
}
