// ABOUTME: Diagnostic tool that exercises the feedback endpoint alone
// ABOUTME: Pulses SOF frames with the stream parked and prints decoded feedback
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uaclink/uaclink-go/internal/wsbus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

var (
	deviceAddr = flag.String("device", "localhost:8847", "Device address")
	interval   = flag.Duration("interval", time.Millisecond, "Frame pulse interval")
	count      = flag.Int("count", 0, "Stop after this many feedback values (0 = run until interrupted)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Feedback Probe ===")
	fmt.Println("This probe will:")
	fmt.Println("1. Connect to the device")
	fmt.Println("2. Open the feedback endpoint with the stream parked at alt 0")
	fmt.Println("3. Pulse SOF frames and print every feedback value")
	fmt.Println()

	host := wsbus.NewHost(wsbus.HostConfig{
		DeviceAddr: *deviceAddr,
		Name:       "feedback-probe",
	})
	if err := host.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer host.Close()

	hello := host.Device()
	fmt.Printf("Connected to %s: %d Hz, refresh every %d frames\n",
		hello.Name, hello.SampleRateHz, hello.RefreshFrames)
	fmt.Println()

	if err := host.SetFeedbackAlt(1); err != nil {
		log.Fatalf("Failed to open feedback endpoint: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	nominal := float64(hello.SampleRateHz) / 1000
	seen := 0
	start := time.Now()

loop:
	for {
		select {
		case <-sigChan:
			break loop
		case <-host.Closed():
			log.Fatalf("Device closed the connection")
		case <-ticker.C:
		}

		frame, err := host.PulseSOF()
		if err != nil {
			log.Fatalf("Frame pulse failed: %v", err)
		}

		value, ok := host.TakeFeedback()
		if !ok {
			continue
		}
		seen++

		samples := uac.FeedbackSamplesPerFrame(value)
		fmt.Printf("[%8.3fs] frame %8d  0x%06X  %.4f samples/frame (%+.2f ppm)\n",
			time.Since(start).Seconds(), frame, value, samples, (samples/nominal-1)*1e6)

		if *count > 0 && seen >= *count {
			break loop
		}
	}

	host.SetFeedbackAlt(0)
	fmt.Printf("\n%d feedback values in %s\n", seen, time.Since(start).Round(time.Millisecond))
}
