package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-snapio/internal/config"
	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/snapio"
)

func (a *app) status() error {
	puc, err := a.conn.GetStatusPUC()
	if err != nil {
		return err
	}
	lastErr, err := a.conn.GetStatusLastError()
	if err != nil {
		return err
	}
	ver, err := a.conn.GetStatusVersion()
	if err != nil {
		return err
	}
	hw, err := a.conn.GetStatusHardware()
	if err != nil {
		return err
	}
	nw, err := a.conn.GetStatusNetwork()
	if err != nil {
		return err
	}

	w := a.stdout
	fmt.Fprintf(w, "puc pending:   %t\n", puc)
	if lastErr == 0 {
		fmt.Fprintln(w, "last error:    none")
	} else {
		fmt.Fprintf(w, "last error:    %d (%s)\n", uint32(lastErr), lastErr)
	}
	fmt.Fprintf(w, "map version:   %d\n", ver.MapVersion)
	fmt.Fprintf(w, "loader:        %s\n", ver.LoaderVersion)
	fmt.Fprintf(w, "kernel:        %s\n", ver.KernelVersion)
	fmt.Fprintf(w, "unit type:     0x%X\n", hw.UnitType)
	fmt.Fprintf(w, "hardware date: %04d-%02d-%02d\n", hw.Year, hw.Month, hw.Day)
	fmt.Fprintf(w, "ram:           %d bytes\n", hw.RAMSize)
	fmt.Fprintf(w, "mac:           %s\n", nw.MAC)
	fmt.Fprintf(w, "ip:            %s\n", nw.IP)
	fmt.Fprintf(w, "netmask:       %s\n", nw.SubnetMask)
	fmt.Fprintf(w, "gateway:       %s\n", nw.Gateway)

	return nil
}

// lookup resolves a configured point name or a d:<index> / a:<index> reference.
func (a *app) lookup(ref string) (config.PointConfig, error) {
	if p, ok := a.cfg.Point(ref); ok {
		return p, nil
	}

	kind, idx, ok := strings.Cut(ref, ":")
	if ok {
		n, err := strconv.Atoi(idx)
		if err == nil && n >= 0 && n < memmap.DigitalBankPoints {
			switch kind {
			case "d":
				return config.PointConfig{Name: ref, Kind: config.KindDigital, Index: n}, nil
			case "a":
				return config.PointConfig{Name: ref, Kind: config.KindAnalog, Index: n}, nil
			}
		}
	}

	return config.PointConfig{}, fmt.Errorf("unknown point %q", ref)
}

func (a *app) get(ref string) error {
	p, err := a.lookup(ref)
	if err != nil {
		return err
	}

	switch p.Kind {
	case config.KindDigital:
		area, err := a.conn.GetDigitalPointArea(p.Index)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s=%s on-latch=%t off-latch=%t counter=%t counts=%d\n",
			p.Name, onOff(area.State), area.OnLatch, area.OffLatch, area.CounterActive, area.Counts)

	case config.KindAnalog:
		area, err := a.conn.GetAnalogPointArea(p.Index)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s=%g counts=%g min=%g max=%g\n",
			p.Name, area.Value, area.Counts, area.MinValue, area.MaxValue)
	}

	return nil
}

func (a *app) set(ref, value string) error {
	p, err := a.lookup(ref)
	if err != nil {
		return err
	}
	if p.Direction == config.DirectionInput {
		return fmt.Errorf("point %q is an input", p.Name)
	}

	switch p.Kind {
	case config.KindDigital:
		on, err := parseOnOff(value)
		if err != nil {
			return err
		}
		if err := a.conn.SetDigitalState(p.Index, on); err != nil {
			return err
		}

	case config.KindAnalog:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("invalid analog value %q: %w", value, err)
		}
		if err := a.conn.SetAnalogValue(p.Index, float32(v)); err != nil {
			return err
		}
	}

	a.log.Info("point set", "point", p.Name, "value", value)

	return nil
}

// configure writes the configuration of every point with a point type, then
// the unit's watchdog timer.
func (a *app) configure() error {
	n := 0
	for _, p := range a.cfg.Points {
		if p.PointType == 0 {
			continue
		}

		var err error
		switch p.Kind {
		case config.KindDigital:
			err = a.conn.SetDigitalPointConfig(p.Index, p.PointType, p.Feature)
		case config.KindAnalog:
			err = a.conn.SetAnalogPointConfig(p.Index, p.PointType, p.Offset, p.Gain, p.HiScale, p.LoScale)
		}
		if err != nil {
			return fmt.Errorf("configure point %q: %w", p.Name, err)
		}

		a.log.Info("point configured", "point", p.Name, "kind", p.Kind, "index", p.Index, "type", p.PointType)
		n++
	}

	if ms := a.cfg.Unit.WatchdogMs; ms > 0 {
		if err := a.conn.SetStatusWatchdogTime(time.Duration(ms) * time.Millisecond); err != nil {
			return fmt.Errorf("set watchdog: %w", err)
		}
	}

	fmt.Fprintf(a.stdout, "configured %d points\n", n)

	return nil
}

// scan prints every configured point once per scan interval, count times or
// until ctx is done.
func (a *app) scan(ctx context.Context, count int) error {
	if len(a.cfg.Points) == 0 {
		return errors.New("scan: no points configured")
	}

	ticker := time.NewTicker(a.cfg.Scan.Interval())
	defer ticker.Stop()

	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		line, err := a.scanOnce()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, line)
	}

	return nil
}

// scanOnce reads each bank at most once and formats the configured points.
func (a *app) scanOnce() (string, error) {
	var (
		states   uint64
		values   snapio.AnalogBank
		haveDig  bool
		haveAna  bool
		err      error
		readings = make([]string, 0, len(a.cfg.Points))
	)

	for _, p := range a.cfg.Points {
		switch p.Kind {
		case config.KindDigital:
			if !haveDig {
				if states, err = a.conn.GetDigitalBankStates(); err != nil {
					return "", err
				}
				haveDig = true
			}
			readings = append(readings, p.Name+"="+onOff(states&(1<<uint(p.Index)) != 0))

		case config.KindAnalog:
			if !haveAna {
				if values, err = a.conn.GetAnalogBankValues(); err != nil {
					return "", err
				}
				haveAna = true
			}
			readings = append(readings, fmt.Sprintf("%s=%g", p.Name, values[p.Index]))
		}
	}

	return strings.Join(readings, " "), nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}

	on, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid digital value %q", s)
	}

	return on, nil
}
