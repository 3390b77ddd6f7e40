// Package config loads and validates the measurement configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/sweep"
)

// Transport names accepted by instrument.transport.
const (
	TransportVISA     = "visa"
	TransportPrologix = "prologix"
)

type Config struct {
	Instrument InstrumentConfig       `yaml:"instrument"`
	Sample     domain.Sample          `yaml:"sample"`
	Sweep      domain.SweepParameters `yaml:"sweep"`
	Experiment string                 `yaml:"experiment"`
	Range      RangeConfig            `yaml:"range"`
	Data       DataConfig             `yaml:"data"`
	Postgres   PostgresConfig         `yaml:"postgres"`
	Journal    JournalConfig          `yaml:"journal"`
	Metrics    MetricsConfig          `yaml:"metrics"`
	Log        LogConfig              `yaml:"log"`
}

type InstrumentConfig struct {
	Transport string        `yaml:"transport"`
	Resource  string        `yaml:"resource"` // VISA resource name
	Timeout   time.Duration `yaml:"timeout"`

	// Prologix transport only.
	SerialPort  string        `yaml:"serial_port"`
	BaudRate    int           `yaml:"baud_rate"`
	WriteDelay  time.Duration `yaml:"write_delay"`
	GPIBAddress int           `yaml:"gpib_address"`
}

// UnmarshalYAML decodes the instrument block with duration strings for
// timeout and write_delay.
func (ic *InstrumentConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Transport   string `yaml:"transport"`
		Resource    string `yaml:"resource"`
		Timeout     string `yaml:"timeout"`
		SerialPort  string `yaml:"serial_port"`
		BaudRate    int    `yaml:"baud_rate"`
		WriteDelay  string `yaml:"write_delay"`
		GPIBAddress int    `yaml:"gpib_address"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	timeout, err := parseDuration("instrument.timeout", raw.Timeout)
	if err != nil {
		return err
	}
	writeDelay, err := parseDuration("instrument.write_delay", raw.WriteDelay)
	if err != nil {
		return err
	}

	*ic = InstrumentConfig{
		Transport:   raw.Transport,
		Resource:    raw.Resource,
		Timeout:     timeout,
		SerialPort:  raw.SerialPort,
		BaudRate:    raw.BaudRate,
		WriteDelay:  writeDelay,
		GPIBAddress: raw.GPIBAddress,
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

// RangeConfig overrides the calibrated range-decision constants. Zero
// fields keep the defaults.
type RangeConfig struct {
	Epsilon         float64 `yaml:"epsilon"`
	MinRange        float64 `yaml:"min_range"`
	AvoidRange      float64 `yaml:"avoid_range"`
	SettleRange     float64 `yaml:"settle_range"`
	SettleCount     int     `yaml:"settle_count"`
	OverflowCeiling float64 `yaml:"overflow_ceiling"`
	FlapLow         float64 `yaml:"flap_low"`
	FlapHigh        float64 `yaml:"flap_high"`
	FlapRange       float64 `yaml:"flap_range"`
	FlapThreshold   int     `yaml:"flap_threshold"`
	SafeRange       float64 `yaml:"safe_range"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

type PostgresConfig struct {
	ConnString    string `yaml:"conn_string"`
	SamplesTable  string `yaml:"samples_table"`
	SessionsTable string `yaml:"sessions_table"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Instrument.Transport == "" {
		c.Instrument.Transport = TransportVISA
	}
	if c.Instrument.Timeout == 0 {
		c.Instrument.Timeout = 10 * time.Second
	}
	if c.Instrument.BaudRate == 0 {
		c.Instrument.BaudRate = 115200
	}
	if c.Experiment == "" {
		c.Experiment = "staircase_sweep"
	}
	if c.Sweep.PointsPerStep == 0 {
		c.Sweep.PointsPerStep = 1
	}
	if c.Sweep.StartFrom == "" {
		c.Sweep.StartFrom = domain.StartFromMax
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "./data"
	}
	if c.Postgres.SamplesTable == "" {
		c.Postgres.SamplesTable = "sweep_samples"
	}
	if c.Postgres.SessionsTable == "" {
		c.Postgres.SessionsTable = "sweep_sessions"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.File == "" {
		c.Log.File = "./logs/hrms.log"
	}
}

func (c *Config) validate() error {
	switch c.Instrument.Transport {
	case TransportVISA:
		if c.Instrument.Resource == "" {
			return fmt.Errorf("instrument.resource is required for the visa transport")
		}
	case TransportPrologix:
		if c.Instrument.SerialPort == "" {
			return fmt.Errorf("instrument.serial_port is required for the prologix transport")
		}
		if c.Instrument.GPIBAddress == 0 {
			return fmt.Errorf("instrument.gpib_address is required for the prologix transport")
		}
	default:
		return fmt.Errorf("instrument.transport must be %q or %q, got %q",
			TransportVISA, TransportPrologix, c.Instrument.Transport)
	}
	if c.Sample.Name == "" {
		return fmt.Errorf("sample.name is required")
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	return nil
}

// RangeConfig merges the overrides onto the calibrated defaults.
func (c *Config) RangeConfig() sweep.RangeConfig {
	rc := sweep.DefaultRangeConfig()
	if c.Range.Epsilon != 0 {
		rc.Epsilon = c.Range.Epsilon
	}
	if c.Range.MinRange != 0 {
		rc.MinRange = c.Range.MinRange
	}
	if c.Range.AvoidRange != 0 {
		rc.AvoidRange = c.Range.AvoidRange
	}
	if c.Range.SettleRange != 0 {
		rc.SettleRange = c.Range.SettleRange
	}
	if c.Range.SettleCount != 0 {
		rc.SettleCount = c.Range.SettleCount
	}
	if c.Range.OverflowCeiling != 0 {
		rc.OverflowCeiling = c.Range.OverflowCeiling
	}
	if c.Range.FlapLow != 0 {
		rc.FlapLow = c.Range.FlapLow
	}
	if c.Range.FlapHigh != 0 {
		rc.FlapHigh = c.Range.FlapHigh
	}
	if c.Range.FlapRange != 0 {
		rc.FlapRange = c.Range.FlapRange
	}
	if c.Range.FlapThreshold != 0 {
		rc.FlapThreshold = c.Range.FlapThreshold
	}
	if c.Range.SafeRange != 0 {
		rc.SafeRange = c.Range.SafeRange
	}
	return rc
}
