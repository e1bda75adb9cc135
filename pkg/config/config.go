// Package config loads meshlight settings from YAML.
//
// Example file:
//
//	mesh:
//	  name: home
//	  password: s3cret
//	device:
//	  address: A4:C1:38:01:02:03
//	  mesh_id: 3
//	log_level: debug
//	capture: /tmp/lamp.cbor
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Factory defaults of a lamp that never joined a mesh.
const (
	DefaultMeshName     = "unpaired"
	DefaultMeshPassword = "1234"
	DefaultLogLevel     = "info"
)

// Config holds all settings.
type Config struct {
	Mesh   MeshConfig   `yaml:"mesh"`
	Device DeviceConfig `yaml:"device"`

	// LogLevel is one of disabled, error, warn, info, debug, trace.
	LogLevel string `yaml:"log_level"`

	// Capture is the path of a CBOR capture file. Empty disables capture.
	Capture string `yaml:"capture,omitempty"`
}

// MeshConfig holds the mesh credentials.
type MeshConfig struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`

	// LTK is the long-term key sent with a mesh change.
	LTK string `yaml:"ltk,omitempty"`
}

// DeviceConfig identifies the lamp.
type DeviceConfig struct {
	Address string `yaml:"address"`
	MeshID  uint16 `yaml:"mesh_id"`
}

// LoadError describes a configuration that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := "config: " + e.Message
	if e.File != "" {
		msg = fmt.Sprintf("config: %s: %s", e.File, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the factory configuration.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Name:     DefaultMeshName,
			Password: DefaultMeshPassword,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	c, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, err
	}
	return c, nil
}

// Validate checks credentials, address and log level. An empty address is
// allowed; commands that talk to a lamp check for it themselves.
func (c *Config) Validate() error {
	if _, err := pairing.MeshCredential(c.Mesh.Name, c.Mesh.Password); err != nil {
		return &LoadError{Message: "invalid mesh credentials", Cause: err}
	}
	if len(c.Mesh.LTK) > pairing.CredentialSize {
		return &LoadError{Message: "invalid mesh ltk", Cause: pairing.ErrCredentialTooLong}
	}
	if c.Device.Address != "" {
		if _, err := packet.ParseAddress(c.Device.Address); err != nil {
			return &LoadError{Message: "invalid device address", Cause: err}
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &LoadError{Message: "invalid log level", Cause: err}
	}
	return nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseLevel maps a level name to a pion log level.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "", "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

// LoggerFactory returns a logger factory at the configured level.
func (c *Config) LoggerFactory() logging.LoggerFactory {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}

	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = level
	return f
}
