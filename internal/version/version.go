// ABOUTME: Build identity constants reported in bus handshakes
// ABOUTME: Version, product and manufacturer strings
package version

const (
	Version      = "0.1.0"
	Product      = "UAC Link"
	Manufacturer = "uaclink"
)
