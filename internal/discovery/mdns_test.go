// ABOUTME: Tests for mDNS discovery
// ABOUTME: Validates manager lifecycle and service entry parsing
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	config := Config{
		Name:     "Test Speaker",
		Port:     8847,
		DeviceID: "abc-123",
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	defer mgr.Stop()

	if mgr.config.Name != "Test Speaker" {
		t.Errorf("Name = %q, want %q", mgr.config.Name, "Test Speaker")
	}
	if mgr.config.Port != 8847 {
		t.Errorf("Port = %d, want 8847", mgr.config.Port)
	}
	if mgr.devices == nil {
		t.Error("devices channel should not be nil")
	}
	if mgr.Devices() != mgr.devices {
		t.Error("Devices() should return the manager's channel")
	}
}

func TestManagerStop(t *testing.T) {
	mgr := NewManager(Config{Name: "test", Port: 8847})
	mgr.Stop()

	select {
	case <-mgr.ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("context should be cancelled after Stop()")
	}
}

func TestDeviceFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:   "Living Room._uaclink._tcp.local.",
		AddrV4: net.IPv4(192, 168, 1, 50),
		Port:   8847,
		InfoFields: []string{
			"path=/bus",
			"id=4f7a6e32-9b7c-4c1f-9d8e-aa11bb22cc33",
			"name=Living Room Speaker",
		},
	}

	device := deviceFromEntry(entry)
	if device == nil {
		t.Fatal("deviceFromEntry returned nil")
	}
	if device.Name != "Living Room Speaker" {
		t.Errorf("Name = %q, want TXT name", device.Name)
	}
	if device.ID != "4f7a6e32-9b7c-4c1f-9d8e-aa11bb22cc33" {
		t.Errorf("ID = %q, want TXT id", device.ID)
	}
	if device.Host != "192.168.1.50" {
		t.Errorf("Host = %q, want 192.168.1.50", device.Host)
	}
	if got := device.Addr(); got != "192.168.1.50:8847" {
		t.Errorf("Addr() = %q, want 192.168.1.50:8847", got)
	}
}

func TestDeviceFromEntryFallbackName(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:   "Bedroom._uaclink._tcp.local.",
		AddrV4: net.IPv4(10, 0, 0, 9),
		Port:   9000,
	}

	device := deviceFromEntry(entry)
	if device == nil {
		t.Fatal("deviceFromEntry returned nil")
	}
	if device.Name != "Bedroom" {
		t.Errorf("Name = %q, want instance name without service suffix", device.Name)
	}
	if device.ID != "" {
		t.Errorf("ID = %q, want empty without TXT", device.ID)
	}
}

func TestDeviceFromEntryNoAddress(t *testing.T) {
	if device := deviceFromEntry(&mdns.ServiceEntry{Name: "x", Port: 1}); device != nil {
		t.Errorf("entry without address should be skipped, got %+v", device)
	}
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	if err != nil {
		t.Fatalf("getLocalIPs failed: %v", err)
	}

	for _, ip := range ips {
		if ip.To4() == nil {
			t.Errorf("getLocalIPs returned non-IPv4 address: %v", ip)
		}
		if ip.IsLoopback() {
			t.Errorf("getLocalIPs returned loopback address: %v", ip)
		}
	}
}
