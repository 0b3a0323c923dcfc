// Package config loads and validates the server and client configuration
// surfaces (spec §6). A single Config value is constructed at startup and
// passed explicitly to every collaborator that needs it — nothing in this
// module reaches for a package-level global, unlike the flag-and-global
// pattern of ham-radio servers that only ever run one instance per
// process.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CompressionMode is the server's wire-compression selection.
type CompressionMode string

const (
	CompressionNone CompressionMode = "none"
	CompressionFLAC CompressionMode = "flac"
	CompressionZLib CompressionMode = "zlib"
)

// Server is the complete server-side configuration, covering both the
// YAML config file and the CLI flags of spec §6 (CLI flags take
// precedence and are merged in by cmd/remoteiq-server).
type Server struct {
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`

	CertPath string `yaml:"cert_path"` // empty disables TLS/WSS, falls back to plain TCP
	KeyPath  string `yaml:"key_path"`

	MaxClients       int `yaml:"max_clients"`
	TimeLimitMinutes int `yaml:"time_limit_minutes"` // 0 = unlimited

	MaxSampleRate int `yaml:"max_sample_rate"`
	BitDepth      int `yaml:"bit_depth"` // 8, 16, 24, or 32

	Compression      CompressionMode `yaml:"compression"`
	CompressionLevel int             `yaml:"compression_level"` // 0-8 (FLAC) or 0-9 (zlib)
	BlockSize        int             `yaml:"block_size"`        // samples per compressed block

	RemoteControl bool   `yaml:"remote_control"`
	IQOnly        bool   `yaml:"iq_only"`
	Callsign      string `yaml:"callsign"` // station identity attached to queue/broadcast chat messages

	DeviceSampleRate int `yaml:"device_sample_rate"` // capture device's native IQ rate

	IPBlacklistPath string `yaml:"ip_blacklist"`

	ConnRateLimit int `yaml:"conn_rate_limit"` // connection attempts/sec/IP, 0 = unlimited
	CmdRateLimit  int `yaml:"cmd_rate_limit"`  // control commands/sec/session; loaded but not read by the server listener

	MetricsListen string `yaml:"metrics_listen"` // Prometheus /metrics bind address, empty disables it
}

// Client is the client-side configuration (spec §4.6's jitter-buffer
// knob and connection target).
type Client struct {
	ServerAddress string `yaml:"server_address"`
	ServerPort    int    `yaml:"server_port"`
	UseTLS        bool   `yaml:"use_tls"` // passed to client.New; the handler always dials plain TCP

	PrefillSeconds     float64 `yaml:"prefill_seconds"`
	ReconnectDelayMS   int     `yaml:"reconnect_delay_ms"` // loaded only; the handler's reconnect delay is a fixed 500 ms
	OutputWAVPath      string  `yaml:"output_wav_path"`
}

// LoadServer reads and validates a server configuration file.
func LoadServer(path string) (*Server, error) {
	var cfg Server
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads a client configuration file.
func LoadClient(path string) (*Client, error) {
	var cfg Client
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelayMS == 0 {
		cfg.ReconnectDelayMS = 500
	}
	return &cfg, nil
}

func load(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Server) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = "0.0.0.0"
	}
	if c.ListenPort == 0 {
		c.ListenPort = 1234
	}
	if c.MaxClients == 0 {
		c.MaxClients = 1
	}
	if c.MaxSampleRate == 0 {
		c.MaxSampleRate = 2400000
	}
	if c.BitDepth == 0 {
		c.BitDepth = 16
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.BlockSize == 0 {
		c.BlockSize = 4096
	}
	if c.DeviceSampleRate == 0 {
		c.DeviceSampleRate = c.MaxSampleRate
	}
	if c.Callsign == "" {
		c.Callsign = "NOCALL"
	}
}

// Validate checks the fields the server needs before it can start
// listening, returning an error that maps to exit code 2 (spec §6).
func (c *Server) Validate() error {
	switch c.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("config: bit_depth must be 8, 16, 24, or 32, got %d", c.BitDepth)
	}

	switch c.Compression {
	case CompressionNone, CompressionFLAC, CompressionZLib:
	default:
		return fmt.Errorf("config: compression must be none, flac, or zlib, got %q", c.Compression)
	}

	if c.Compression == CompressionFLAC && c.BitDepth == 32 {
		return fmt.Errorf("config: flac compression does not support 32-bit samples")
	}

	if c.MaxClients < 1 {
		return fmt.Errorf("config: max_clients must be at least 1, got %d", c.MaxClients)
	}

	if (c.CertPath == "") != (c.KeyPath == "") {
		return fmt.Errorf("config: cert_path and key_path must both be set or both be empty")
	}

	return nil
}
