// ABOUTME: Entry point for the UAC Link speaker daemon
// ABOUTME: Serves the virtual bus, runs the speaker engine and the device TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/uaclink/uaclink-go/internal/discovery"
	"github.com/uaclink/uaclink-go/internal/ui"
	"github.com/uaclink/uaclink-go/internal/version"
	"github.com/uaclink/uaclink-go/internal/wsbus"
	"github.com/uaclink/uaclink-go/pkg/audio/sink"
	"github.com/uaclink/uaclink-go/pkg/speaker"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

var (
	listenAddr   = flag.String("listen", ":8847", "Bus listen address")
	name         = flag.String("name", "", "Device friendly name (default: hostname-uaclink)")
	sinkName     = flag.String("sink", "oto", "Playback sink: oto, malgo or null")
	sinkBits     = flag.Int("sink-bits", 24, "Sink word width in bits: 16, 24 or 32")
	underrun     = flag.String("underrun", "reuse", "Underrun policy: reuse or silence")
	applyControl = flag.Bool("apply-control", true, "Apply master volume and mute to the sink")
	logFile      = flag.String("log-file", "uaclink.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	debug        = flag.Bool("debug", false, "Verbose packet logging")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	deviceName := *name
	if deviceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		deviceName = fmt.Sprintf("%s-uaclink", hostname)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, deviceName)

	stream := uac.DefaultStreamConfig()

	policy, err := speaker.ParseUnderrunPolicy(*underrun)
	if err != nil {
		log.Fatalf("Invalid underrun policy: %v", err)
	}

	snk, err := newSink(*sinkName, sink.Config{
		SampleRateHz: stream.SampleRateHz,
		Channels:     stream.Channels,
		Bits:         *sinkBits,
		PeriodWords:  stream.SampleRateHz / 1000 * stream.Channels,
	})
	if err != nil {
		log.Fatalf("Failed to create %s sink: %v", *sinkName, err)
	}

	device, err := wsbus.NewDevice(wsbus.DeviceConfig{
		ListenAddr: *listenAddr,
		Name:       deviceName,
		Stream:     stream,
		Debug:      *debug,
	})
	if err != nil {
		log.Fatalf("Failed to create bus device: %v", err)
	}

	engCfg := speaker.Config{
		Stream:   stream,
		Sink:     snk,
		SinkBits: *sinkBits,
		Underrun: policy,
		Debug:    *debug,
	}
	if *applyControl {
		engCfg.Control.OnControl = func(state speaker.ControlState) {
			if c, ok := state.Get(uac.ChannelMaster); ok {
				snk.SetVolume(int(uac.VolumeAmplitude(c.Volume) * 100))
				snk.SetMuted(c.Muted)
			}
		}
	}

	engine, err := speaker.NewEngine(device.Speaker(), engCfg)
	if err != nil {
		log.Fatalf("Failed to build speaker engine: %v", err)
	}

	if err := device.Start(); err != nil {
		log.Fatalf("Failed to start bus: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	var disc *discovery.Manager
	if !*noMDNS {
		port, err := listenPort(device.Addr())
		if err != nil {
			log.Printf("Cannot advertise: %v", err)
		} else {
			disc = discovery.NewManager(discovery.Config{
				Name:     deviceName,
				Port:     port,
				DeviceID: device.ID(),
			})
			if err := disc.Advertise(); err != nil {
				log.Printf("mDNS advertisement failed: %v", err)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		runTUI(engine, device, stream, deviceName, sigChan)
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if err := engine.Stop(); err != nil {
		log.Printf("Engine stop: %v", err)
	}
	device.Stop()
	if disc != nil {
		disc.Stop()
	}
	log.Printf("Device stopped")
}

// runTUI blocks until the user quits the TUI or a signal arrives.
func runTUI(engine *speaker.Engine, device *wsbus.Device, stream uac.StreamConfig, deviceName string, sigChan chan os.Signal) {
	deviceTUI := ui.NewDeviceTUI()

	stop := make(chan struct{})
	go statusLoop(deviceTUI, engine, device, stream, deviceName, stop)

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- deviceTUI.Start(deviceStatus(engine, device, stream, deviceName))
	}()

	select {
	case <-deviceTUI.QuitChan():
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case err := <-tuiDone:
		if err != nil {
			log.Printf("TUI error: %v", err)
		}
	}
	close(stop)
	deviceTUI.Stop()
}

// statusLoop feeds the TUI a fresh snapshot twice a second.
func statusLoop(t *ui.DeviceTUI, engine *speaker.Engine, device *wsbus.Device, stream uac.StreamConfig, deviceName string, stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Update(deviceStatus(engine, device, stream, deviceName))
		}
	}
}

func deviceStatus(engine *speaker.Engine, device *wsbus.Device, stream uac.StreamConfig, deviceName string) ui.DeviceStatus {
	st := engine.Stats()
	ds := device.Status()

	var controls []ui.ControlInfo
	for _, c := range engine.ControlState().Controls {
		controls = append(controls, ui.ControlInfo{
			Channel: c.Channel.String(),
			Volume:  c.Volume,
			Muted:   c.Muted,
		})
	}

	return ui.DeviceStatus{
		Name:              deviceName,
		Addr:              device.Addr(),
		Sink:              fmt.Sprintf("%s (%d-bit)", *sinkName, *sinkBits),
		Format:            fmt.Sprintf("%d Hz, %d ch, %d-bit", stream.SampleRateHz, stream.Channels, stream.Width.Bits()),
		HostConnected:     ds.HostConnected,
		HostName:          ds.HostName,
		HostAddr:          ds.HostAddr,
		StreamConnected:   ds.StreamConnected,
		FeedbackConnected: ds.FeedbackConnected,
		Frames:            ds.Frames,
		SOFGaps:           ds.SOFGaps,
		Packets:           st.Receiver.Packets,
		BadPackets:        st.Receiver.Invalid,
		Dropped:           st.Output.SamplesDropped,
		Periods:           st.Output.Periods,
		Underruns:         st.Output.Underruns,
		QueueDepth:        st.Output.QueueDepth,
		QueueCap:          16 * stream.MaxPacketSamples(),
		FeedbackSent:      st.Feedback.Sent,
		FeedbackLast:      st.Feedback.LastValue,
		Controls:          controls,
	}
}

// newSink builds the playback backend selected on the command line.
func newSink(name string, cfg sink.Config) (sink.Sink, error) {
	switch name {
	case "oto":
		return sink.NewOto(cfg)
	case "malgo":
		return sink.NewMalgo(cfg)
	case "null":
		return sink.NewNull(cfg)
	default:
		return nil, fmt.Errorf("unknown sink %q (want oto, malgo or null)", name)
	}
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
