// ABOUTME: USB Audio Class 1.0 definitions for the speaker endpoint
// ABOUTME: Stream configuration, channels and feedback value encoding
// Package uac provides USB Audio Class 1.0 definitions for a speaker endpoint.
//
// This package defines the fixed stream format and the values derived from it:
//   - StreamConfig: sample rate, channel count, sample width, feedback refresh
//   - Channel: spatial channel identifiers for control requests
//   - Feedback encoding: the 3-byte little-endian 10.14 fixed-point format
//
// Example:
//
//	cfg := uac.DefaultStreamConfig()
//	packet := make([]byte, uac.FeedbackPacketSize)
//	value := uint32(math.Round(float64(delta) * cfg.FeedbackScale()))
//	uac.PutFeedback(packet, value)
package uac
