package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifican/internal/logging"
)

const (
	// ServiceType is the default mDNS service type for gateways
	ServiceType = "_wifican._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the gateway firmware's TCP port
	DefaultPort = 10001
)

// ErrNoGateway is returned by First when nothing answered before the timeout
var ErrNoGateway = errors.New("no gateway found")

// Scanner handles mDNS gateway discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// ServiceType is the DNS-SD service browsed for
	ServiceType string

	// InstancePrefix, when set, keeps only instances whose name starts with it
	InstancePrefix string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:     DefaultScanTimeout,
		ServiceType: ServiceType,
	}
}

// Scan browses until the timeout or ctx ends and returns every gateway seen.
func (s *Scanner) Scan(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		gateways = make([]*Gateway, 0)
		seen     = make(map[string]bool)
	)

	err := s.browse(ctx, func(gw *Gateway) bool {
		mu.Lock()
		defer mu.Unlock()
		if key := gw.Instance + "@" + gw.Address(); !seen[key] {
			seen[key] = true
			gateways = append(gateways, gw)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Gateway(nil), gateways...), nil
}

// First returns the first gateway that answers.
func (s *Scanner) First(ctx context.Context) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Gateway, 1)
	err := s.browse(ctx, func(gw *Gateway) bool {
		select {
		case found <- gw:
		default:
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w within %s", ErrNoGateway, s.Timeout)
	}
}

// browse starts the resolver and calls fn for each matching entry until fn
// returns false or ctx ends.
func (s *Scanner) browse(ctx context.Context, fn func(*Gateway) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			gw := s.parseServiceEntry(entry)
			if gw == nil {
				continue
			}
			logging.Debug("Gateway discovered",
				zap.String("instance", gw.Instance),
				zap.String("addr", gw.Address()),
			)
			if !fn(gw) {
				return
			}
		}
	}()

	serviceType := s.ServiceType
	if serviceType == "" {
		serviceType = ServiceType
	}

	if err := resolver.Browse(ctx, serviceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Gateway
// Returns nil if the entry has no usable address or is filtered out
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil {
		return nil
	}

	instance := entry.Instance
	if s.InstancePrefix != "" && !strings.HasPrefix(instance, s.InstancePrefix) {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Gateway{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
