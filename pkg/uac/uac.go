// ABOUTME: USB Audio Class 1.0 core types
// ABOUTME: Audio channels, volume units, sample widths and feedback refresh periods
package uac

import (
	"fmt"
	"math"
)

// Channel is a feature-unit channel number. Zero addresses the master
// control, positive values address the logical channels in cluster
// order.
type Channel int

const (
	ChannelMaster Channel = iota
	ChannelLeftFront
	ChannelRightFront
	ChannelCenterFront
	ChannelLowFrequency
	ChannelLeftSurround
	ChannelRightSurround
)

// StereoChannels is the front left/right pair used by the default
// stream configuration.
var StereoChannels = []Channel{ChannelLeftFront, ChannelRightFront}

func (c Channel) String() string {
	switch c {
	case ChannelMaster:
		return "master"
	case ChannelLeftFront:
		return "left-front"
	case ChannelRightFront:
		return "right-front"
	case ChannelCenterFront:
		return "center-front"
	case ChannelLowFrequency:
		return "lfe"
	case ChannelLeftSurround:
		return "left-surround"
	case ChannelRightSurround:
		return "right-surround"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Volume control values carry 1/256 dB steps, zero meaning full scale.
// VolumeSilence is the class-defined "sound is off" sentinel.
const (
	VolumeSilence int16 = -0x8000
	VolumeMax     int16 = 0x7FFF
)

// VolumeDB converts a volume control value to decibels.
func VolumeDB(v int16) float64 { return float64(v) / 256 }

// VolumeAmplitude converts a volume control value to a linear gain in
// [0, 1]. VolumeSilence and positive boosts clamp to the range ends.
func VolumeAmplitude(v int16) float64 {
	if v == VolumeSilence {
		return 0
	}
	amp := math.Pow(10, VolumeDB(v)/20)
	if amp > 1 {
		return 1
	}
	return amp
}

// SampleWidth is the size of one PCM sample word in bytes.
type SampleWidth int

const (
	Width1Byte SampleWidth = 1
	Width2Byte SampleWidth = 2
	Width3Byte SampleWidth = 3
	Width4Byte SampleWidth = 4
)

// Bits returns the sample width in bits.
func (w SampleWidth) Bits() int { return int(w) * 8 }

// FeedbackRefresh is the feedback refresh period exponent: the device
// reports one feedback value every 1<<value USB frames. This is the
// bRefresh field of the feedback endpoint descriptor.
type FeedbackRefresh uint8

const (
	Refresh1Frame FeedbackRefresh = iota
	Refresh2Frames
	Refresh4Frames
	Refresh8Frames
	Refresh16Frames
	Refresh32Frames
	Refresh64Frames
	Refresh128Frames
	Refresh256Frames
)

// Frames returns the refresh period in USB frames.
func (r FeedbackRefresh) Frames() int { return 1 << r }
