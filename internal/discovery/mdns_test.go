package discovery

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: ServiceDomain},
		HostName:      host,
		Port:          port,
		AddrIPv4:      v4,
		AddrIPv6:      v6,
		Text:          text,
	}
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "gateway with IPv4",
			entry:    entry("WiFiCAN-53b2ce", "wifican.local.", 10001, []net.IP{net.ParseIP("192.168.42.1")}, nil, "fw=1.2"),
			wantIP:   "192.168.42.1",
			wantPort: 10001,
		},
		{
			name:     "custom port",
			entry:    entry("bench", "bench.local.", 2000, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantIP:   "10.0.0.5",
			wantPort: 2000,
		},
		{
			name:     "no port specified defaults to firmware port",
			entry:    entry("bench", "bench.local.", 0, []net.IP{net.ParseIP("172.16.0.1")}, nil),
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name:     "IPv6 only",
			entry:    entry("v6", "v6.local.", 10001, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 10001,
		},
		{
			name:     "IPv4 preferred over IPv6",
			entry:    entry("dual", "dual.local.", 10001, []net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "192.168.1.50",
			wantPort: 10001,
		},
		{
			name:    "no IP address",
			entry:   entry("none", "none.local.", 10001, nil, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if gw != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", gw)
				}
				return
			}

			if gw == nil {
				t.Fatal("parseServiceEntry() returned nil, want gateway")
			}
			if gw.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", gw.IP, tt.wantIP)
			}
			if gw.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", gw.Port, tt.wantPort)
			}
			if gw.Instance != tt.entry.Instance {
				t.Errorf("Instance = %v, want %v", gw.Instance, tt.entry.Instance)
			}
			if gw.Metadata == nil {
				t.Error("Metadata should be initialized")
			}
			if time.Since(gw.DiscoveredAt) > time.Second {
				t.Error("DiscoveredAt should be recent")
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()

	gw := scanner.parseServiceEntry(entry("WiFiCAN-1", "wifican.local.", 10001,
		[]net.IP{net.ParseIP("192.168.42.1")}, nil,
		"fw=1.2", "bitrate=500000", "url=http://x/?a=b", "flag"))
	if gw == nil {
		t.Fatal("parseServiceEntry() returned nil")
	}

	tests := []struct {
		key  string
		want string
	}{
		{"fw", "1.2"},
		{"bitrate", "500000"},
		{"url", "http://x/?a=b"},
		{"flag", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := gw.GetMetadata(tt.key); got != tt.want {
			t.Errorf("GetMetadata(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestScanner_InstancePrefix(t *testing.T) {
	scanner := NewScanner()
	scanner.InstancePrefix = "WiFiCAN"

	ip := []net.IP{net.ParseIP("192.168.42.1")}
	if gw := scanner.parseServiceEntry(entry("WiFiCAN-53b2ce", "a.local.", 10001, ip, nil)); gw == nil {
		t.Error("matching instance should be kept")
	}
	if gw := scanner.parseServiceEntry(entry("printer", "p.local.", 10001, ip, nil)); gw != nil {
		t.Errorf("non-matching instance should be dropped, got %v", gw)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
	if scanner.ServiceType != "_wifican._tcp" {
		t.Errorf("ServiceType = %q", scanner.ServiceType)
	}
}

func TestGateway_Address(t *testing.T) {
	tests := []struct {
		gw   Gateway
		want string
	}{
		{Gateway{IP: "192.168.42.1", Port: 10001}, "192.168.42.1:10001"},
		{Gateway{IP: "fe80::1", Port: 10001}, "[fe80::1]:10001"},
	}
	for _, tt := range tests {
		if got := tt.gw.Address(); got != tt.want {
			t.Errorf("Address() = %q, want %q", got, tt.want)
		}
	}
}

func TestGateway_String(t *testing.T) {
	gw := &Gateway{Instance: "WiFiCAN-53b2ce", Hostname: "wifican.local.", IP: "192.168.42.1", Port: 10001}
	s := gw.String()
	for _, part := range []string{"WiFiCAN-53b2ce", "wifican.local.", "192.168.42.1:10001"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestGateway_GetMetadataNil(t *testing.T) {
	gw := &Gateway{}
	if got := gw.GetMetadata("fw"); got != "" {
		t.Errorf("GetMetadata() on nil map = %q, want empty", got)
	}
}
