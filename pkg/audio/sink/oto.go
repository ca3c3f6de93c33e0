// ABOUTME: Oto-backed playback sink
// ABOUTME: Feeds a persistent 16-bit player through a pipe, pacing rides the pipe backpressure
package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"
)

// Oto plays through the oto library. Output is always signed 16-bit;
// wider configured words are reduced on the way out.
type Oto struct {
	cfg    Config
	otoCtx *oto.Context
	player *oto.Player
	pr     *io.PipeReader
	pw     *io.PipeWriter
	out    []byte
	gain   gain
}

// NewOto returns an oto sink. The device opens on Start.
func NewOto(cfg Config) (*Oto, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Oto{cfg: cfg, out: make([]byte, 2*cfg.PeriodWords)}
	o.gain.init()
	return o, nil
}

func (o *Oto) Start() error {
	op := &oto.NewContextOptions{
		SampleRate:   o.cfg.SampleRateHz,
		ChannelCount: o.cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   10 * o.cfg.Period(),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("sink: oto context: %w", err)
	}
	<-ready

	o.otoCtx = ctx
	o.pr, o.pw = io.Pipe()
	o.player = ctx.NewPlayer(o.pr)
	o.player.Play()

	log.Printf("Audio output started: %dHz, %d channels (oto/s16)", o.cfg.SampleRateHz, o.cfg.Channels)
	return nil
}

// ReadFrame zero-fills buf; oto has no capture path.
func (o *Oto) ReadFrame(buf []int32) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// WriteFrame scales, narrows to 16 bits and feeds the player pipe. The
// write blocks once the player buffer is full, which is what paces the
// caller.
func (o *Oto) WriteFrame(buf []int32) error {
	if o.player == nil {
		return fmt.Errorf("sink: not started")
	}
	if 2*len(buf) > cap(o.out) {
		o.out = make([]byte, 2*len(buf))
	}
	out := o.out[:2*len(buf)]

	mult := o.gain.multiplier()
	shift := uint(o.cfg.Bits - 16)
	for i, w := range buf {
		s := scaleWord(w, mult, o.cfg.Bits)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s>>shift)))
	}

	if _, err := o.pw.Write(out); err != nil {
		return fmt.Errorf("sink: pipe write: %w", err)
	}
	return nil
}

func (o *Oto) SetVolume(volume int) {
	o.gain.setVolume(volume)
	log.Printf("Sink volume set to %d", volume)
}

func (o *Oto) SetMuted(muted bool) {
	o.gain.setMuted(muted)
	log.Printf("Sink muted: %v", muted)
}

// Close tears the pipe down first so a blocked WriteFrame unsticks,
// then releases the player. The oto context cannot be destroyed, only
// suspended.
func (o *Oto) Close() error {
	if o.pw != nil {
		o.pw.Close()
		o.pw = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pr != nil {
		o.pr.Close()
		o.pr = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	return nil
}
