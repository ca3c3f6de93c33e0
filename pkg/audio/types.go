// ABOUTME: PCM word helpers shared by the stream and tooling paths
// ABOUTME: Little-endian word codecs, width shifts and range clamps
package audio

// Sample range constants for the widths the stream path handles.
const (
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
	Max16Bit = 32767
	Min16Bit = -32768
)

// SampleLE reads one little-endian PCM word of the given byte width and
// sign-extends it to int32.
func SampleLE(b []byte, width int) int32 {
	switch width {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(uint16(b[0]) | uint16(b[1])<<8))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF)
		}
		return v
	case 4:
		return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	default:
		panic("audio: unsupported sample width")
	}
}

// PutSampleLE writes one PCM word little-endian at the given byte width.
// Bits above the width are discarded.
func PutSampleLE(dst []byte, v int32, width int) {
	switch width {
	case 1:
		dst[0] = byte(v)
	case 2:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
	case 3:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
	case 4:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
		dst[3] = byte(v >> 24)
	default:
		panic("audio: unsupported sample width")
	}
}

// SampleToInt16 converts a 24-bit word (held in int32) to int16.
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 to a 24-bit word held in int32.
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// Clamp24 limits a value to the signed 24-bit sample range.
func Clamp24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}

// Clamp16 limits a value to the signed 16-bit sample range.
func Clamp16(v int64) int16 {
	if v > Max16Bit {
		return Max16Bit
	}
	if v < Min16Bit {
		return Min16Bit
	}
	return int16(v)
}
