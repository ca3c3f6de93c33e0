// ABOUTME: mDNS discovery of speaker devices on the local network
// ABOUTME: Devices advertise _uaclink._tcp, hosts browse or one-shot query
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_uaclink._tcp"

// Config holds discovery configuration.
type Config struct {
	Name     string
	Port     int
	DeviceID string
}

// Manager handles mDNS advertisement and browsing.
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	devices chan *DeviceInfo
}

// DeviceInfo describes a discovered speaker device.
type DeviceInfo struct {
	Name string
	Host string
	Port int
	ID   string
}

// Addr returns the host:port dial target.
func (d *DeviceInfo) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// NewManager creates a discovery manager.
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		devices: make(chan *DeviceInfo, 10),
	}
}

// Advertise publishes this device via mDNS until Stop.
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	txt := []string{
		"path=/bus",
		"id=" + m.config.DeviceID,
		"name=" + m.config.Name,
	}

	service, err := mdns.NewMDNSService(
		m.config.Name,
		serviceType,
		"",
		"",
		m.config.Port,
		ips,
		txt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.Name, m.config.Port, serviceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for devices continuously until Stop. Results arrive
// on Devices.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				device := deviceFromEntry(entry)
				if device == nil {
					continue
				}

				log.Printf("Discovered device: %s at %s (ID: %s)", device.Name, device.Addr(), device.ID)

				select {
				case m.devices <- device:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		mdns.Query(params)
		close(entries)
	}
}

// Devices returns the channel of discovered devices.
func (m *Manager) Devices() <-chan *DeviceInfo {
	return m.devices
}

// Stop stops advertisement and browsing.
func (m *Manager) Stop() {
	m.cancel()
}

// Discover runs a single query and returns everything that answered
// within the timeout.
func Discover(timeout time.Duration) ([]*DeviceInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})

	var found []*DeviceInfo
	go func() {
		defer close(done)
		for entry := range entries {
			if device := deviceFromEntry(entry); device != nil {
				log.Printf("Discovered device: %s at %s (ID: %s)", device.Name, device.Addr(), device.ID)
				found = append(found, device)
			}
		}
	}()

	params := &mdns.QueryParam{
		Service: serviceType,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}
	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return found, nil
}

// deviceFromEntry extracts device details from a service entry. The
// TXT records carry the device ID and display name.
func deviceFromEntry(entry *mdns.ServiceEntry) *DeviceInfo {
	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil
	}

	name := entry.Name
	if i := strings.Index(name, "."+serviceType); i > 0 {
		name = name[:i]
	}

	device := &DeviceInfo{Name: name, Host: host, Port: entry.Port}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "id="); ok {
			device.ID = v
		}
		if v, ok := strings.CutPrefix(field, "name="); ok && v != "" {
			device.Name = v
		}
	}
	return device
}

// getLocalIPs returns the non-loopback IPv4 addresses of this machine.
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
