// ABOUTME: Real-time core of the speaker endpoint
// ABOUTME: Receiver, sample channel, output task, feedback loop and engine
// Package speaker implements the real-time core of the audio function.
//
// The core moves PCM from the bus to the playback sink and closes the
// rate-feedback loop:
//   - Receiver: decodes isochronous packets into sample blocks
//   - BlockChannel: the two-slot zero-copy handoff between receiver and output
//   - OutputTask: drains blocks into the sink in half-buffer lockstep
//   - FeedbackMeter / FeedbackSender: measure ticks per refresh window and
//     report samples-per-frame to the host
//   - ControlWatcher: surfaces volume/mute snapshots for policy hooks
//
// Engine assembles all of the above against a bus.Speaker and a sink.Sink.
//
// Example:
//
//	eng, err := speaker.NewEngine(ep, speaker.Config{
//	    Stream: uac.DefaultStreamConfig(),
//	    Sink:   snk,
//	})
//	err = eng.Start(ctx)
//	defer eng.Stop()
package speaker
