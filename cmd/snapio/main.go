// Command snapio reads and drives the points of a SNAP I/O unit.
//
// Usage:
//
//	snapio [flags] status
//	snapio [flags] get <point>
//	snapio [flags] set <point> <value>
//	snapio [flags] configure
//	snapio [flags] scan
//
// A point is a name from the -config file, or d:<index> / a:<index> for a
// digital or analog point by index. With -simulate the commands run against
// an in-process simulated unit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-snapio/internal/config"
	"github.com/arloliu/go-snapio/logger"
	"github.com/arloliu/go-snapio/snapio"
	"github.com/arloliu/go-snapio/snapiotest"
)

const simulatedHost = "simulator"

var errUsage = errors.New("usage: snapio [flags] status|get|set|configure|scan")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "snapio:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	host       string
	port       int
	timeout    time.Duration
	simulate   bool
	debug      bool
	count      int
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	// dialer overrides the transport; nil dials TCP.
	dialer snapio.Dialer

	log  logger.Logger
	cfg  *config.Config
	conn *snapio.Connection
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapio", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	var f flags
	fs.StringVar(&f.configPath, "config", "", "YAML unit and point configuration")
	fs.StringVar(&f.host, "host", "", "unit host, overrides the configuration")
	fs.IntVar(&f.port, "port", 0, "unit port, overrides the configuration")
	fs.DurationVar(&f.timeout, "timeout", 0, "transaction timeout, overrides the configuration")
	fs.BoolVar(&f.simulate, "simulate", false, "use an in-process simulated unit")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fs.IntVar(&f.count, "count", 0, "number of scans; 0 scans until interrupted")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	level := logger.InfoLevel
	if f.debug {
		level = logger.DebugLevel
	}
	a.log = logger.NewSlogWriter(a.stderr, level, false)

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if f.simulate && a.dialer == nil {
		a.dialer = snapiotest.NewUnit(snapiotest.WithLogger(a.log)).Dialer()
	}

	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.conn.Close()

	cmdArgs := fs.Args()[1:]
	switch fs.Arg(0) {
	case "status":
		return a.status()
	case "get":
		if len(cmdArgs) != 1 {
			return errors.New("usage: snapio get <point>")
		}
		return a.get(cmdArgs[0])
	case "set":
		if len(cmdArgs) != 2 {
			return errors.New("usage: snapio set <point> <value>")
		}
		return a.set(cmdArgs[0], cmdArgs[1])
	case "configure":
		return a.configure()
	case "scan":
		return a.scan(ctx, f.count)
	default:
		return fmt.Errorf("unknown command %q: %w", fs.Arg(0), errUsage)
	}
}

// loadConfig reads the configuration file, if any, and applies flag overrides.
func loadConfig(f flags) (*config.Config, error) {
	cfg := &config.Config{}
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.host != "" {
		cfg.Unit.Host = f.host
	}
	if cfg.Unit.Host == "" && f.simulate {
		cfg.Unit.Host = simulatedHost
	}
	if f.port != 0 {
		cfg.Unit.Port = f.port
	}
	if f.timeout != 0 {
		cfg.Unit.TimeoutMs = int(f.timeout.Milliseconds())
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)

	return cfg, nil
}

func (a *app) connect(ctx context.Context) error {
	u := a.cfg.Unit
	opts := []snapio.ConnOption{
		snapio.WithTimeout(u.Timeout()),
		snapio.WithLogger(a.log),
		snapio.WithStateChangeHandler(func(_ *snapio.Connection, prev, cur snapio.ConnState) {
			a.log.Debug("connection state changed", "prev", prev, "new", cur)
		}),
	}
	if a.dialer != nil {
		opts = append(opts, snapio.WithDialer(a.dialer))
	}

	conn, err := snapio.Open(u.Host, u.Port, u.OpenTimeout(), u.Handshake(), opts...)
	if err != nil {
		return err
	}

	if err := conn.WaitOpen(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("open %s:%d: %w", u.Host, u.Port, err)
	}
	a.conn = conn

	return nil
}
