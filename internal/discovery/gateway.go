package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Gateway represents a CAN-over-TCP gateway found on the network
type Gateway struct {
	// Instance is the advertised service instance name (e.g., "WiFiCAN-53b2ce")
	Instance string

	// Hostname is the mDNS hostname (e.g., "wifican.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the TCP port the gateway listens on
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the gateway was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the gateway
func (g *Gateway) String() string {
	return fmt.Sprintf("%s (%s) at %s", g.Instance, g.Hostname, g.Address())
}

// Address returns the host:port to dial
func (g *Gateway) Address() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}
