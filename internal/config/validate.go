package config

import (
	"fmt"
	"strings"
)

// Highest point index of a 64-point rack.
const maxPointIndex = 63

// Validate checks configuration correctness. Zero values that Normalize
// replaces with defaults are accepted. It does not mutate cfg.
func Validate(cfg *Config) error {
	u := cfg.Unit

	if strings.TrimSpace(u.Host) == "" {
		return fmt.Errorf("unit: host is required")
	}
	if u.Port < 0 || u.Port > 65535 {
		return fmt.Errorf("unit: port %d out of range", u.Port)
	}
	if u.TimeoutMs < 0 {
		return fmt.Errorf("unit: timeout_ms must not be negative")
	}
	if u.OpenTimeoutMs < 0 {
		return fmt.Errorf("unit: open_timeout_ms must not be negative")
	}
	if u.WatchdogMs < 0 {
		return fmt.Errorf("unit: watchdog_ms must not be negative")
	}
	if cfg.Scan.IntervalMs < 0 {
		return fmt.Errorf("scan: interval_ms must not be negative")
	}

	names := make(map[string]struct{}, len(cfg.Points))
	// key = kind | index
	owners := make(map[string]string, len(cfg.Points))

	for i, p := range cfg.Points {
		if p.Name == "" {
			return fmt.Errorf("points[%d]: name is required", i)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("point %q: duplicate name", p.Name)
		}
		names[p.Name] = struct{}{}

		switch p.Kind {
		case KindDigital, KindAnalog:
		default:
			return fmt.Errorf("point %q: kind must be %q or %q", p.Name, KindDigital, KindAnalog)
		}

		switch p.Direction {
		case "", DirectionInput, DirectionOutput:
		default:
			return fmt.Errorf("point %q: direction must be %q or %q", p.Name, DirectionInput, DirectionOutput)
		}

		if p.Index < 0 || p.Index > maxPointIndex {
			return fmt.Errorf("point %q: index %d out of range [0, %d]", p.Name, p.Index, maxPointIndex)
		}

		key := fmt.Sprintf("%s|%d", p.Kind, p.Index)
		if prev, exists := owners[key]; exists {
			return fmt.Errorf("point %q: %s index %d already used by %q", p.Name, p.Kind, p.Index, prev)
		}
		owners[key] = p.Name

		if p.Kind == KindDigital && (p.Offset != 0 || p.Gain != 0 || p.HiScale != 0 || p.LoScale != 0) {
			return fmt.Errorf("point %q: analog scaling set on a digital point", p.Name)
		}
	}

	return nil
}
