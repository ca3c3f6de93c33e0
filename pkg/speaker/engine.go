// ABOUTME: Engine assembling the speaker core tasks over one endpoint bundle
// ABOUTME: Owns the block channel, task goroutine lifecycle and aggregate stats
package speaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uaclink/uaclink-go/pkg/audio/sink"
	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// Config assembles an Engine. Zero values fall back to the defaults
// noted per field.
type Config struct {
	// Stream is the class-level stream configuration.
	Stream uac.StreamConfig

	// Sink is the playback backend. Required.
	Sink sink.Sink

	// Counter is the tick source for feedback measurement. Defaults to
	// a monotonic clock counter at Stream.TickRateHz.
	Counter bus.Counter

	// SinkBits selects the sink word width: 16, 24 or 32. Default 24.
	SinkBits int

	// PeriodWords is the sink half-buffer size in sample words.
	// Default one millisecond of audio.
	PeriodWords int

	// QueueWords is the output smoothing queue capacity. Default
	// sixteen maximum packets of samples.
	QueueWords int

	// ReceiveTimeout bounds the output task's per-period block wait.
	// Default 500 microseconds.
	ReceiveTimeout time.Duration

	Underrun UnderrunPolicy

	Control ControlConfig

	// Debug enables per-packet diagnostics.
	Debug bool
}

// Stats aggregates the counters of every task for TUIs and tests.
type Stats struct {
	Receiver ReceiverStats
	Output   OutputStats
	Feedback FeedbackStats

	// FeedbackWindows counts completed refresh windows, whether or not
	// a host was listening for the result.
	FeedbackWindows uint64

	ControlChanges uint64
}

// Engine wires a speaker endpoint bundle to a playback sink: receiver,
// output task, feedback meter and sender, and control monitor, all
// exchanging data through the two-slot block channel and the tick-delta
// signal.
type Engine struct {
	ep  bus.Speaker
	cfg Config

	ch       *BlockChannel
	receiver *Receiver
	output   *OutputTask
	meter    *FeedbackMeter
	sender   *FeedbackSender
	control  *ControlWatcher

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewEngine validates cfg, applies defaults and builds the task graph.
// Nothing runs until Start.
func NewEngine(ep bus.Speaker, cfg Config) (*Engine, error) {
	if err := cfg.Stream.Validate(); err != nil {
		return nil, err
	}
	if ep.Stream == nil || ep.Feedback == nil || ep.Control == nil || ep.Sync == nil {
		return nil, errors.New("speaker: incomplete endpoint bundle")
	}
	if cfg.Sink == nil {
		return nil, errors.New("speaker: no sink configured")
	}
	if cfg.SinkBits == 0 {
		cfg.SinkBits = 24
	}
	switch cfg.SinkBits {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("speaker: unsupported sink width %d bits", cfg.SinkBits)
	}
	if cfg.PeriodWords == 0 {
		cfg.PeriodWords = cfg.Stream.SampleRateHz / 1000 * cfg.Stream.Channels
	}
	if cfg.QueueWords == 0 {
		cfg.QueueWords = 16 * cfg.Stream.MaxPacketSamples()
	}
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = 500 * time.Microsecond
	}
	if cfg.Counter == nil {
		cfg.Counter = bus.NewClockCounter(cfg.Stream.TickRateHz)
	}

	e := &Engine{ep: ep, cfg: cfg}
	e.ch = NewBlockChannel(cfg.Stream.MaxPacketSamples())
	e.receiver = NewReceiver(ep.Stream, e.ch, cfg.Stream, cfg.Debug)
	e.output = NewOutputTask(e.ch, cfg.Sink, OutputConfig{
		PeriodWords: cfg.PeriodWords,
		SinkBits:    cfg.SinkBits,
		QueueWords:  cfg.QueueWords,
		Timeout:     cfg.ReceiveTimeout,
		Policy:      cfg.Underrun,
	})
	e.meter = NewFeedbackMeter(cfg.Counter, cfg.Stream)
	e.sender = NewFeedbackSender(ep.Feedback, e.meter.Deltas(), cfg.Stream)
	e.control = NewControlWatcher(ep.Control, cfg.Control)
	return e, nil
}

// Start opens the sink, registers the frame handler and launches the
// four task goroutines.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return errors.New("speaker: engine already started")
	}
	if err := e.cfg.Sink.Start(); err != nil {
		return fmt.Errorf("speaker: sink start: %w", err)
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.ep.Sync.OnFrame(e.meter.HandleFrame)

	e.wg.Add(4)
	go func() {
		defer e.wg.Done()
		e.receiver.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.output.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.sender.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.control.Run(ctx)
	}()

	e.started = true
	return nil
}

// Stop cancels the tasks, waits for them to exit and closes the sink.
func (e *Engine) Stop() error {
	if !e.started {
		return nil
	}
	e.cancel()
	e.wg.Wait()
	e.started = false
	return e.cfg.Sink.Close()
}

// Stats snapshots every task's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Receiver:        e.receiver.Stats(),
		Output:          e.output.Stats(),
		Feedback:        e.sender.Stats(),
		FeedbackWindows: e.meter.Windows(),
		ControlChanges:  e.control.Changes(),
	}
}

// ControlState returns the latest control snapshot.
func (e *Engine) ControlState() ControlState {
	return e.control.State()
}
