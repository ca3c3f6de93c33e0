// ABOUTME: Host-side CLI that streams audio to a UAC Link device
// ABOUTME: Dials or discovers a device, opens the endpoints and runs the pacer
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/bits"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uaclink/uaclink-go/internal/discovery"
	"github.com/uaclink/uaclink-go/internal/hostsim"
	"github.com/uaclink/uaclink-go/internal/wsbus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

var (
	deviceAddr = flag.String("device", "", "Device address host:port (default: discover via mDNS)")
	hostName   = flag.String("name", "uaclink-host", "Host name sent to the device")
	audioFile  = flag.String("audio", "", "Audio file to stream: .mp3, .wav or .flac (default: test tone)")
	toneHz     = flag.Float64("tone-hz", 440, "Test tone frequency in Hz")
	toneAmp    = flag.Float64("tone-amp", 0.5, "Test tone amplitude as a 0-1 fraction")
	noFeedback = flag.Bool("no-feedback", false, "Ignore explicit feedback and run open loop")
	driftPPM   = flag.Float64("drift-ppm", 0, "Simulated host clock drift in parts per million")
	volumeDB   = flag.Float64("volume-db", 0, "Master volume in dB sent after connect")
	muteFlag   = flag.Bool("mute", false, "Mute the master channel after connect")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 = run until interrupted)")
	logFile    = flag.String("log-file", "uaclink-host.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug      = flag.Bool("debug", false, "Verbose pacing logs")
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

	addr := *deviceAddr
	if addr == "" {
		log.Printf("Searching for devices via mDNS...")
		devices, err := discovery.Discover(5 * time.Second)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		if len(devices) == 0 {
			log.Fatalf("No devices found (use -device to specify an address)")
		}
		addr = devices[0].Addr()
		log.Printf("Using device %s at %s", devices[0].Name, addr)
	}

	host := wsbus.NewHost(wsbus.HostConfig{
		DeviceAddr: addr,
		Name:       *hostName,
		Debug:      *debug,
	})
	if err := host.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer host.Close()

	hello := host.Device()
	log.Printf("Connected to %s (%s): %d Hz, %d ch, %d-bit",
		hello.Name, hello.DeviceID, hello.SampleRateHz, hello.Channels, hello.SampleBits)

	stream := uac.DefaultStreamConfig()
	stream.SampleRateHz = hello.SampleRateHz
	stream.Channels = hello.Channels
	stream.Width = uac.SampleWidth(hello.SampleBits / 8)
	if hello.RefreshFrames > 0 {
		stream.Refresh = uac.FeedbackRefresh(bits.TrailingZeros(uint(hello.RefreshFrames)))
	}
	if err := stream.Validate(); err != nil {
		log.Fatalf("Unsupported device format: %v", err)
	}

	var src hostsim.Source
	if *audioFile != "" {
		src, err = hostsim.NewFileSource(*audioFile)
		if err != nil {
			log.Fatalf("Failed to open audio source: %v", err)
		}
	} else {
		src = hostsim.NewToneSource(stream.SampleRateHz, *toneHz, *toneAmp)
	}
	source := hostsim.NewStreamSource(src, stream.SampleRateHz, stream.Channels)
	defer source.Close()
	log.Printf("Streaming %s", source.Describe())

	if err := host.SetStreamAlt(1); err != nil {
		log.Fatalf("Failed to open stream endpoint: %v", err)
	}
	fbAlt := 0
	if !*noFeedback {
		if err := host.SetFeedbackAlt(1); err != nil {
			log.Fatalf("Failed to open feedback endpoint: %v", err)
		}
		fbAlt = 1
	}

	if *volumeDB != 0 || *muteFlag {
		volume := int16(math.Round(*volumeDB * 256))
		if err := host.SetControl(uac.ChannelMaster, volume, *muteFlag); err != nil {
			log.Fatalf("Failed to set control: %v", err)
		}
		log.Printf("Control set: volume %+.1f dB, muted %v", *volumeDB, *muteFlag)
	}

	pacer := hostsim.NewPacer(source, host, hostsim.PacerConfig{
		Stream:      stream,
		DriftPPM:    *driftPPM,
		UseFeedback: !*noFeedback,
		Debug:       *debug,
	})

	ctx := context.Background()
	var cancel context.CancelFunc
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	pacerDone := make(chan error, 1)
	go func() {
		pacerDone <- pacer.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	status := func() hostsim.HostStatus {
		st := pacer.Stats()
		return hostsim.HostStatus{
			DeviceName:      hello.Name,
			DeviceID:        hello.DeviceID,
			DeviceAddr:      addr,
			Format:          fmt.Sprintf("%d Hz, %d ch, %d-bit", hello.SampleRateHz, hello.Channels, hello.SampleBits),
			Source:          source.Describe(),
			StreamAlt:       1,
			FeedbackAlt:     fbAlt,
			Frames:          st.Frames,
			Packets:         st.Packets,
			Starved:         st.Starved,
			FeedbackOn:      !*noFeedback,
			Feedback:        uint32(st.Target * (1 << uac.FeedbackShift)),
			FeedbackApplied: st.FeedbackApplied,
			Target:          st.Target,
		}
	}

	if useTUI {
		runTUI(host, status, sigChan, pacerDone)
	} else {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
		case err := <-pacerDone:
			logPacerExit(err)
		case <-host.Closed():
			log.Printf("Device closed the connection")
		}
	}
	cancel()

	// Park both endpoints before closing; the device may already be gone.
	host.SetStreamAlt(0)
	host.SetFeedbackAlt(0)
	log.Printf("Host stopped")
}

// runTUI blocks until the user quits, a signal arrives, the pacer
// stops or the device drops the connection.
func runTUI(host *wsbus.Host, status func() hostsim.HostStatus, sigChan chan os.Signal, pacerDone <-chan error) {
	hostTUI := hostsim.NewHostTUI()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hostTUI.Update(status())
			}
		}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- hostTUI.Start(status())
	}()

	select {
	case <-hostTUI.QuitChan():
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case err := <-pacerDone:
		logPacerExit(err)
	case <-host.Closed():
		log.Printf("Device closed the connection")
	case err := <-tuiDone:
		if err != nil {
			log.Printf("TUI error: %v", err)
		}
	}
	close(stop)
	hostTUI.Stop()
}

func logPacerExit(err error) {
	switch {
	case err == nil:
		log.Printf("Pacer finished")
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("Playback duration reached")
	case errors.Is(err, context.Canceled):
	default:
		log.Printf("Pacer stopped: %v", err)
	}
}
