package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/wifican/internal/protocol"
)

// CurrentVersion is the only configuration file version understood
const CurrentVersion = 1

// Defaults matching the gateway firmware and its reference test script
const (
	DefaultHost         = "192.168.42.1"
	DefaultPort         = 10001
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 10 * time.Second
	DefaultDialAttempts = 1
	DefaultServiceType  = "_wifican._tcp"
	DefaultScanTimeout  = 5 * time.Second
)

// Config represents the entire configuration file.
type Config struct {
	Version   int               `yaml:"version"`
	Gateway   Gateway           `yaml:"gateway"`
	Messages  []PeriodicMessage `yaml:"messages"`
	Discovery *Discovery        `yaml:"discovery,omitempty"`
}

// Gateway describes how to reach the CAN-over-TCP gateway.
type Gateway struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	DialTimeout  Duration `yaml:"dial_timeout"`
	ReadTimeout  Duration `yaml:"read_timeout"`  // Bound on a blocking read with no incoming data
	DialAttempts int      `yaml:"dial_attempts"` // Connection attempts before giving up (no reconnects)
}

// PeriodicMessage is one frame transmitted on a fixed cadence.
type PeriodicMessage struct {
	Name     string   `yaml:"name,omitempty"`
	ID       string   `yaml:"id"`   // Hex identifier, e.g. "0x456"
	Extended bool     `yaml:"extended,omitempty"`
	Data     string   `yaml:"data"` // Hex payload, e.g. "0806040200"
	Period   Duration `yaml:"period"`
}

// Discovery holds mDNS browse settings.
type Discovery struct {
	ServiceType string   `yaml:"service_type"`
	Timeout     Duration `yaml:"timeout"`

	// InstancePrefix keeps only gateways whose instance name starts with it
	InstancePrefix string `yaml:"instance_prefix,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Gateway: Gateway{
			Host:         DefaultHost,
			Port:         DefaultPort,
			DialTimeout:  Duration(DefaultDialTimeout),
			ReadTimeout:  Duration(DefaultReadTimeout),
			DialAttempts: DefaultDialAttempts,
		},
		Messages: []PeriodicMessage{
			{
				Name:   "standard",
				ID:     "0x456",
				Data:   "0806040200",
				Period: Duration(10 * time.Millisecond),
			},
			{
				Name:     "extended",
				ID:       "0x56789A",
				Extended: true,
				Data:     "05030709",
				Period:   Duration(100 * time.Millisecond),
			},
		},
		Discovery: &Discovery{
			ServiceType: DefaultServiceType,
			Timeout:     Duration(DefaultScanTimeout),
		},
	}
}

// Message parses the textual id and payload into a validated message.
func (m PeriodicMessage) Message() (protocol.Message, error) {
	return protocol.ParseMessageFields(m.ID, m.Data, m.Extended)
}

// DisplayName returns Name, falling back to the identifier.
func (m PeriodicMessage) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultPort
	}
	if c.Gateway.DialTimeout == 0 {
		c.Gateway.DialTimeout = Duration(DefaultDialTimeout)
	}
	if c.Gateway.ReadTimeout == 0 {
		c.Gateway.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Gateway.DialAttempts == 0 {
		c.Gateway.DialAttempts = DefaultDialAttempts
	}
	if c.Discovery == nil {
		c.Discovery = &Discovery{}
	}
	if c.Discovery.ServiceType == "" {
		c.Discovery.ServiceType = DefaultServiceType
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = Duration(DefaultScanTimeout)
	}
}

// Validate checks the whole configuration and returns every problem
// found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, &FieldError{
			Field: "version",
			Err:   fmt.Errorf("unsupported version %d (expected %d)", c.Version, CurrentVersion),
		})
	}
	if c.Gateway.Host == "" {
		errs = append(errs, &FieldError{Field: "gateway.host", Err: errors.New("must not be empty")})
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, &FieldError{Field: "gateway.port", Err: fmt.Errorf("%d out of range 1-65535", c.Gateway.Port)})
	}
	if c.Gateway.ReadTimeout <= 0 {
		errs = append(errs, &FieldError{Field: "gateway.read_timeout", Err: errors.New("must be positive")})
	}
	if c.Gateway.DialTimeout < 0 {
		errs = append(errs, &FieldError{Field: "gateway.dial_timeout", Err: errors.New("must not be negative")})
	}
	if c.Gateway.DialAttempts < 1 {
		errs = append(errs, &FieldError{Field: "gateway.dial_attempts", Err: errors.New("must be at least 1")})
	}

	for i, m := range c.Messages {
		field := fmt.Sprintf("messages[%d]", i)
		if _, err := m.Message(); err != nil {
			errs = append(errs, &FieldError{Field: field, Err: err})
		}
		if m.Period <= 0 {
			errs = append(errs, &FieldError{Field: field + ".period", Err: errors.New("must be positive")})
		}
	}

	return errors.Join(errs...)
}

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Duration is a time.Duration written as a Go duration string ("10ms").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Bare numbers are read as
// seconds, so "period: 0.01" means 10ms.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	if node.Tag == "!!int" || node.Tag == "!!float" {
		var seconds float64
		if err := node.Decode(&seconds); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*d = Duration(seconds * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}
