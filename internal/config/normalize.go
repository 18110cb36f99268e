package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultPort          = 2001
	DefaultTimeoutMs     = 1000
	DefaultOpenTimeoutMs = 10000
	DefaultScanMs        = 500
)

// Normalize fills in defaults. It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	u := &cfg.Unit
	u.Host = strings.TrimSpace(u.Host)
	if u.Port == 0 {
		u.Port = DefaultPort
	}
	if u.TimeoutMs == 0 {
		u.TimeoutMs = DefaultTimeoutMs
	}
	if u.OpenTimeoutMs == 0 {
		u.OpenTimeoutMs = DefaultOpenTimeoutMs
	}
	if cfg.Scan.IntervalMs == 0 {
		cfg.Scan.IntervalMs = DefaultScanMs
	}

	for i := range cfg.Points {
		p := &cfg.Points[i]
		if p.Direction == "" {
			p.Direction = DirectionInput
		}
		// unity gain unless configured
		if p.Kind == KindAnalog && p.PointType != 0 && p.Gain == 0 {
			p.Gain = 1
		}
	}
}
