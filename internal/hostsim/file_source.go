// ABOUTME: File-backed PCM sources for the host simulator
// ABOUTME: Decodes MP3, WAV and FLAC files, looping them endlessly
package hostsim

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// NewFileSource opens an audio file and returns a source that loops it.
// The format is chosen by extension.
func NewFileSource(path string) (Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Source(path)
	case ".wav":
		return NewWAVSource(path)
	case ".flac":
		return NewFLACSource(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .wav, .flac)", ext)
	}
}

func sourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MP3Source decodes an MP3 file. The decoder always outputs 16-bit
// stereo, which is shifted up to the 24-bit range.
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	name    string
	buf     []byte
}

func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	name := sourceName(path)
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", name, decoder.SampleRate())

	return &MP3Source{file: f, decoder: decoder, name: name}, nil
}

func (s *MP3Source) Read(words []int32) (int, error) {
	want := (len(words) / 2) * 2
	numBytes := want * 2
	if cap(s.buf) < numBytes {
		s.buf = make([]byte, numBytes)
	}

	n, err := s.decoder.Read(s.buf[:numBytes])
	if err != nil && err != io.EOF {
		return 0, err
	}

	got := (n / 4) * 2
	for i := 0; i < got; i++ {
		sample := int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
		words[i] = int32(sample) << 8
	}

	if err == io.EOF {
		// Loop: seek back and rebuild the decoder.
		if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
			return got, fmt.Errorf("failed to seek to start: %w", seekErr)
		}
		decoder, decErr := mp3.NewDecoder(s.file)
		if decErr != nil {
			return got, fmt.Errorf("failed to reopen MP3 decoder: %w", decErr)
		}
		s.decoder = decoder
	}

	return got, nil
}

func (s *MP3Source) SampleRate() int  { return s.decoder.SampleRate() }
func (s *MP3Source) Channels() int    { return 2 }
func (s *MP3Source) Describe() string { return s.name }
func (s *MP3Source) Close() error     { return s.file.Close() }

// WAVSource plays a WAV file from memory. The whole file is decoded at
// open so reads are just a wrapping copy.
type WAVSource struct {
	name     string
	rate     int
	channels int
	data     []int32
	pos      int
}

func NewWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	data := make([]int32, len(buf.Data)-len(buf.Data)%channels)
	for i := range data {
		v := int32(buf.Data[i])
		switch {
		case bitDepth == 16:
			v <<= 8
		case bitDepth == 24:
		case bitDepth > 24:
			v >>= uint(bitDepth - 24)
		default:
			v <<= uint(24 - bitDepth)
		}
		data[i] = v
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("WAV file contains no samples: %s", path)
	}

	name := sourceName(path)
	log.Printf("Loaded WAV: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		name, decoder.SampleRate, channels, bitDepth)

	return &WAVSource{
		name:     name,
		rate:     int(decoder.SampleRate),
		channels: channels,
		data:     data,
	}, nil
}

func (s *WAVSource) Read(words []int32) (int, error) {
	want := (len(words) / s.channels) * s.channels
	for i := 0; i < want; i++ {
		words[i] = s.data[s.pos]
		s.pos++
		if s.pos == len(s.data) {
			s.pos = 0
		}
	}
	return want, nil
}

func (s *WAVSource) SampleRate() int  { return s.rate }
func (s *WAVSource) Channels() int    { return s.channels }
func (s *WAVSource) Describe() string { return s.name }
func (s *WAVSource) Close() error     { return nil }

// FLACSource decodes a FLAC file frame by frame. Decoded words beyond
// what a Read asked for wait in pending for the next call.
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	rate     int
	channels int
	bitDepth int
	name     string
	pending  []int32
}

func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	name := sourceName(path)
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		name, info.SampleRate, info.NChannels, info.BitsPerSample)

	return &FLACSource{
		file:     f,
		stream:   stream,
		rate:     int(info.SampleRate),
		channels: int(info.NChannels),
		bitDepth: int(info.BitsPerSample),
		name:     name,
	}, nil
}

func (s *FLACSource) Read(words []int32) (int, error) {
	want := (len(words) / s.channels) * s.channels
	filled := 0
	for filled < want {
		if len(s.pending) > 0 {
			n := copy(words[filled:want], s.pending)
			filled += n
			s.pending = s.pending[:copy(s.pending, s.pending[n:])]
			continue
		}

		frame, err := s.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				// Loop: seek back and rebuild the stream.
				if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
					return filled, fmt.Errorf("failed to seek to start: %w", seekErr)
				}
				stream, decErr := flac.New(s.file)
				if decErr != nil {
					return filled, fmt.Errorf("failed to reopen FLAC stream: %w", decErr)
				}
				s.stream = stream
				continue
			}
			return filled, err
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < s.channels; ch++ {
				s.pending = append(s.pending, s.scale(frame.Subframes[ch].Samples[i]))
			}
		}
	}
	return filled, nil
}

// scale shifts a decoded sample to the 24-bit range.
func (s *FLACSource) scale(v int32) int32 {
	switch {
	case s.bitDepth == 16:
		return v << 8
	case s.bitDepth == 24:
		return v
	case s.bitDepth > 24:
		return v >> uint(s.bitDepth-24)
	default:
		return v << uint(24-s.bitDepth)
	}
}

func (s *FLACSource) SampleRate() int  { return s.rate }
func (s *FLACSource) Channels() int    { return s.channels }
func (s *FLACSource) Describe() string { return s.name }
func (s *FLACSource) Close() error     { return s.file.Close() }
