// Package config loads the YAML description of a unit and its named points
// used by the snapio command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Unit   UnitConfig    `yaml:"unit"`
	Scan   ScanConfig    `yaml:"scan"`
	Points []PointConfig `yaml:"points"`
}

// ---- UNIT ----

type UnitConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	OpenTimeoutMs int    `yaml:"open_timeout_ms"`
	// AutoHandshake defaults to true when omitted.
	AutoHandshake *bool `yaml:"auto_handshake"`
	// WatchdogMs, when non-zero, is written to the unit's watchdog timer
	// after the points are configured.
	WatchdogMs int `yaml:"watchdog_ms"`
}

// Timeout returns the per-transaction timeout.
func (u UnitConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// OpenTimeout returns the connection open timeout.
func (u UnitConfig) OpenTimeout() time.Duration {
	return time.Duration(u.OpenTimeoutMs) * time.Millisecond
}

// Handshake reports whether the power-up clear is issued on open.
func (u UnitConfig) Handshake() bool {
	return u.AutoHandshake == nil || *u.AutoHandshake
}

// ---- SCAN ----

type ScanConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// Interval returns the scan period.
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// ---- POINTS ----

// PointKind selects the digital or analog point areas.
type PointKind string

const (
	KindDigital PointKind = "digital"
	KindAnalog  PointKind = "analog"
)

// Direction tells whether a point is read or driven.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type PointConfig struct {
	Name      string    `yaml:"name"`
	Kind      PointKind `yaml:"kind"`
	Index     int       `yaml:"index"`
	Direction Direction `yaml:"direction"`

	// PointType is written by the configure command; zero leaves the
	// point's configuration alone.
	PointType uint32 `yaml:"point_type"`
	Feature   uint32 `yaml:"feature"`

	// Analog scaling, used only when PointType is set on an analog point.
	Offset  float32 `yaml:"offset"`
	Gain    float32 `yaml:"gain"`
	HiScale float32 `yaml:"hi_scale"`
	LoScale float32 `yaml:"lo_scale"`
}

// Point returns the point called name.
func (c *Config) Point(name string) (PointConfig, bool) {
	for _, p := range c.Points {
		if p.Name == name {
			return p, true
		}
	}

	return PointConfig{}, false
}

// Load reads, validates and normalizes the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes, validates and normalizes a YAML document. Unknown keys are
// rejected.
func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)

	return &cfg, nil
}
