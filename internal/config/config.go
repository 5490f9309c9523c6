// Package config loads the monitoring core's YAML bootstrap
// configuration, in the same decode-with-KnownFields idiom
// desertwitch-sesmon's program.go uses for its device list.
package config

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spf13/afero"
)

// Config is the top-level bootstrap configuration: board selection,
// sample rate, transport endpoints, and persistence location. Entity
// data (sensors, zones, areas, users, keypads, outputs) is not here: it
// is read from the separate YAML file at EntitiesPath.
type Config struct {
	Board        BoardConfig      `yaml:"board"`
	SampleRate   SampleRateConfig `yaml:"sample_rate"`
	DatabaseDSN  string           `yaml:"database_dsn"`
	EntitiesPath string           `yaml:"entities_path"`
	IPC          IPCConfig        `yaml:"ipc"`
	GSM          GSMConfig        `yaml:"gsm"`
	SMTP         SMTPConfig       `yaml:"smtp"`
	MQTT         MQTTConfig       `yaml:"mqtt"`
	WebSocket    WebSocketConfig  `yaml:"websocket"`
	Secret       SecretConfig     `yaml:"secret"`
	Siren        SirenConfig      `yaml:"siren"`
	Wiring       WiringConfig     `yaml:"wiring"`
}

// SirenConfig binds the siren driver to a board output channel.
type SirenConfig struct {
	Channel int `yaml:"channel"`
}

// BoardConfig selects the hardware driver set.
type BoardConfig struct {
	Variant      string `yaml:"variant"` // "v2", "v3", "sim"
	UseSimulator bool   `yaml:"use_simulator"`
}

// SampleRateConfig bounds the sensor engine's polling cadence and
// calibration cycle.
type SampleRateConfig struct {
	HZ                float64       `yaml:"hz"`
	MeasurementCycles int           `yaml:"measurement_cycles"`
	MeasurementTime   time.Duration `yaml:"measurement_time"`
}

// WiringConfig carries the pull-up and EOL resistor values the sensor
// engine needs to derive its wiring-strategy voltage levels, plus the
// board reference voltage readings are compared against.
type WiringConfig struct {
	VRef             float64 `yaml:"vref"`
	RPullUp          float64 `yaml:"r_pullup"`
	RA               float64 `yaml:"ra"`
	RB               float64 `yaml:"rb"`
	BoardHasEOL      bool    `yaml:"board_has_eol"`
	V2DuplicateCheck bool    `yaml:"v2_duplicate_check"`
}

// IPCConfig configures the Unix-domain socket endpoint.
type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
	Permission uint32 `yaml:"permission"`
	Username   string `yaml:"username"`
	Groupname  string `yaml:"groupname"`
}

// GSMConfig configures the shared SMS/voice modem session.
type GSMConfig struct {
	Port    string         `yaml:"port"`
	Baud    int            `yaml:"baud"`
	SMS1    string         `yaml:"sms1"`
	SMS2    string         `yaml:"sms2"`
	Voice1  string         `yaml:"voice1"`
}

// SMTPConfig configures the email notification transport.
type SMTPConfig struct {
	Addr     string `yaml:"addr"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email1   string `yaml:"email1"`
	Email2   string `yaml:"email2"`
}

// MQTTConfig gates the Home-Assistant-style MQTT publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WebSocketConfig gates the UI fan-out hub.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SecretConfig locates the process secret file.
type SecretConfig struct {
	Path string `yaml:"path"`
}

// Load reads and strictly decodes the YAML configuration at path
// through fs, rejecting unknown fields the way desertwitch-sesmon's
// "check" subcommand validates its device list.
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the bootstrap invariants a malformed but
// syntactically valid YAML file could still violate.
func (c *Config) Validate() error {
	switch c.Board.Variant {
	case "v2", "v3", "sim":
	default:
		return fmt.Errorf("config: unknown board variant %q", c.Board.Variant)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("config: database_dsn is required")
	}
	if c.EntitiesPath == "" {
		return fmt.Errorf("config: entities_path is required")
	}
	if c.IPC.SocketPath == "" {
		return fmt.Errorf("config: ipc.socket_path is required")
	}
	if c.SampleRate.HZ <= 0 {
		return fmt.Errorf("config: sample_rate.hz must be positive")
	}
	return nil
}
