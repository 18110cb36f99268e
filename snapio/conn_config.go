package snapio

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-snapio/logger"
)

// Default values.
const (
	DefaultPort        = 2001
	DefaultTimeout     = 1 * time.Second  // per-transaction response timeout
	DefaultOpenTimeout = 10 * time.Second // open attempt timeout

	DefaultPollInterval = 10 * time.Millisecond // WaitOpen poll period
)

// Range limits.
const (
	MinTimeout = 1 * time.Millisecond
	MaxTimeout = 5 * time.Minute

	MinOpenTimeout = 1 * time.Millisecond
	// MaxOpenTimeout keeps the open timeout representable in the 32-bit
	// millisecond tick domain.
	MaxOpenTimeout = 24 * time.Hour
)

// ConnectionConfig holds all configuration for a unit connection.
type ConnectionConfig struct {
	host string
	port int

	// timeout bounds each transaction's wait for its response.
	timeout time.Duration
	// openTimeout bounds an open attempt, measured in clock ticks.
	openTimeout time.Duration
	// autoHandshake clears a pending power-up-clear condition after connect.
	autoHandshake bool

	pollInterval time.Duration

	dialer        Dialer
	clock         Clock
	stateHandlers []ConnStateChangeHandler

	logger logger.Logger
}

// NewConnectionConfig creates a new connection configuration.
//
// host is the unit's address and port its TCP port, usually DefaultPort.
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		timeout:      DefaultTimeout,
		openTimeout:  DefaultOpenTimeout,
		pollInterval: DefaultPollInterval,
		logger:       logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.dialer == nil {
		cfg.dialer = &NetDialer{}
	}
	if cfg.clock == nil {
		cfg.clock = NewMonotonicClock()
	}

	return cfg, nil
}

// The host is only checked for shape here. Name resolution happens inside the
// dial so that opening never blocks.
func (cfg *ConnectionConfig) setHost(host string) error {
	host = strings.TrimSpace(host)
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return errors.New("snapio: host must not be empty")
	}
	if strings.ContainsAny(host, " /\\") {
		return fmt.Errorf("snapio: invalid host %q", host)
	}
	cfg.host = host

	return nil
}

func (cfg *ConnectionConfig) setPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("snapio: port %d out of range [1, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

// Timeout returns the per-transaction response timeout.
func (cfg *ConnectionConfig) Timeout() time.Duration { return cfg.timeout }

// OpenTimeout returns the open attempt timeout.
func (cfg *ConnectionConfig) OpenTimeout() time.Duration { return cfg.openTimeout }

// AutoHandshake returns whether the power-up-clear handshake runs after connect.
func (cfg *ConnectionConfig) AutoHandshake() bool { return cfg.autoHandshake }

// PollInterval returns the period WaitOpen polls at.
func (cfg *ConnectionConfig) PollInterval() time.Duration { return cfg.pollInterval }

// Dialer returns the transport dialer.
func (cfg *ConnectionConfig) Dialer() Dialer { return cfg.dialer }

// Clock returns the tick source for open timing.
func (cfg *ConnectionConfig) Clock() Clock { return cfg.clock }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithTimeout sets the per-transaction response timeout.
func WithTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("snapio: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithOpenTimeout sets how long an open attempt may take before PollOpen
// gives up.
func WithOpenTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinOpenTimeout || d > MaxOpenTimeout {
			return fmt.Errorf("snapio: open timeout %v out of range [%v, %v]", d, MinOpenTimeout, MaxOpenTimeout)
		}
		cfg.openTimeout = d

		return nil
	})
}

// WithAutoHandshake enables or disables the power-up-clear handshake that
// runs once the transport is connected. Disabled by default.
func WithAutoHandshake(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.autoHandshake = enabled

		return nil
	})
}

// WithPollInterval sets the period WaitOpen polls at.
func WithPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("snapio: poll interval must be positive")
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithDialer replaces the default TCP dialer, for example with an in-process
// transport.
func WithDialer(d Dialer) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d == nil {
			return errors.New("snapio: dialer must not be nil")
		}
		cfg.dialer = d

		return nil
	})
}

// WithClock replaces the tick source used for open timing.
func WithClock(c Clock) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if c == nil {
			return errors.New("snapio: clock must not be nil")
		}
		cfg.clock = c

		return nil
	})
}

// WithStateChangeHandler registers handlers invoked on connection state changes.
func WithStateChangeHandler(handlers ...ConnStateChangeHandler) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		for _, h := range handlers {
			if h == nil {
				return errors.New("snapio: state change handler must not be nil")
			}
		}
		cfg.stateHandlers = append(cfg.stateHandlers, handlers...)

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("snapio: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
