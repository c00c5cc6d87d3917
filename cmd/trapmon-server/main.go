// Command trapmon-server boots a machine image and serves its debug
// monitor over TCP and, optionally, a serial line. An HTTP/3 diagnostics
// endpoint can be enabled alongside the debug transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/trapmon-dev/trapmon/internal/cli"
	"github.com/trapmon-dev/trapmon/internal/diag"
	"github.com/trapmon-dev/trapmon/internal/image"
	"github.com/trapmon-dev/trapmon/internal/monitor"
	"github.com/trapmon-dev/trapmon/internal/session"
	"github.com/trapmon-dev/trapmon/internal/watch"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

const (
	defaultAddr = ":9021"
	defaultBaud = 115200
)

// imageStore hands the newest manifest to each new session.
type imageStore struct {
	mu  sync.Mutex
	man *image.Manifest
}

func (s *imageStore) get() *image.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.man
}

func (s *imageStore) set(m *image.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.man = m
}

// sessionTracker exposes the most recent session to the diagnostics
// server without letting it reach into the dispatch loop.
type sessionTracker struct {
	mu  sync.Mutex
	cur *session.Session
}

func (t *sessionTracker) set(s *session.Session) {
	t.mu.Lock()
	t.cur = s
	t.mu.Unlock()
}

func (t *sessionTracker) snapshot() (session.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return session.Snapshot{}, false
	}
	return t.cur.Snapshot(), true
}

// serve runs one debug session over rwc against a fresh boot of the
// current image, then closes the transport.
func serve(ctx context.Context, rwc io.ReadWriteCloser, label string, store *imageStore, tracker *sessionTracker, log *cli.Logger) {
	defer rwc.Close()
	man := store.get()
	mach, err := man.Boot()
	if err != nil {
		log.Error("boot %s: %v", man.Name, err)
		return
	}
	sess := session.New(mach, wire.NewPacketIO(rwc))
	tracker.set(sess)
	log.Info("session on %s (image %s v%s)", label, man.Name, man.Version)
	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Debug("session on %s ended: %v", label, err)
		return
	}
	log.Debug("session on %s done", label)
}

func main() {
	var (
		cfgPath     string
		addr        string
		serialDev   string
		baud        int
		imagePath   string
		diagAddr    string
		watchImage  bool
		verbose     bool
		debugLog    bool
		showVersion bool
		jsonOut     bool
	)
	flag.StringVar(&cfgPath, "config", "", "optional TOML config file")
	flag.StringVar(&addr, "addr", defaultAddr, "TCP listen address for the debug transport (empty to disable)")
	flag.StringVar(&serialDev, "serial", "", "serial device to serve (e.g. /dev/ttyUSB0)")
	flag.IntVar(&baud, "baud", defaultBaud, "serial line rate")
	flag.StringVar(&imagePath, "image", "", "target image manifest (required)")
	flag.StringVar(&diagAddr, "diag", "", "HTTP/3 diagnostics listen address (empty to disable)")
	flag.BoolVar(&watchImage, "watch", false, "reload the image manifest when it changes")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.BoolVar(&debugLog, "debug", false, "debug logging")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&jsonOut, "json", false, "print version information as JSON")
	flag.Parse()

	if showVersion {
		cli.PrintVersion("trapmon-server", jsonOut)
		return
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		cli.ExitWithError("config %s: %v", cfgPath, err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = addr
		case "serial":
			cfg.Serial = serialDev
		case "baud":
			cfg.Baud = baud
		case "image":
			cfg.Image = imagePath
		case "diag":
			cfg.Diag = diagAddr
		case "watch":
			cfg.Watch = watchImage
		}
	})

	if cfg.Image == "" {
		fmt.Fprintln(os.Stderr, "--image is required")
		os.Exit(2)
	}
	if cfg.Addr == "" && cfg.Serial == "" {
		fmt.Fprintln(os.Stderr, "nothing to serve: need --addr or --serial")
		os.Exit(2)
	}

	log := cli.NewLogger(verbose, debugLog)

	man, err := image.Load(cfg.Image)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	if err := man.Check(monitor.ProtocolVersion); err != nil {
		cli.ExitWithError("%v", err)
	}
	store := &imageStore{man: man}
	tracker := &sessionTracker{}
	log.Info("image %s v%s loaded (%d symbols)", man.Name, man.Version, len(man.Symbols))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Diag != "" {
		tlsCfg, err := diag.SelfSignedTLS([]string{"localhost", "127.0.0.1"}, 0)
		if err != nil {
			cli.ExitWithError("diagnostics tls: %v", err)
		}
		ds := diag.New(cfg.Diag, tlsCfg, tracker.snapshot, man.Table())
		bound, err := ds.Start()
		if err != nil {
			cli.ExitWithError("diagnostics listen: %v", err)
		}
		defer ds.Stop()
		log.Info("diagnostics listening on https://%s (HTTP/3)", bound)
	}

	if cfg.Watch {
		w, err := watch.New(cfg.Image)
		if err != nil {
			cli.ExitWithError("watch %s: %v", cfg.Image, err)
		}
		defer w.Close()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case path := <-w.Changed():
					next, err := image.Load(path)
					if err != nil {
						log.Warn("image reload: %v", err)
						continue
					}
					if err := next.Check(monitor.ProtocolVersion); err != nil {
						log.Warn("image reload: %v", err)
						continue
					}
					store.set(next)
					log.Info("image %s v%s reloaded, next session boots it", next.Name, next.Version)
				case err := <-w.Errors():
					log.Warn("watch: %v", err)
				}
			}
		}()
	}

	if cfg.Serial != "" {
		log.Info("serving %s at %d baud", cfg.Serial, cfg.Baud)
		go func() {
			for ctx.Err() == nil {
				port, err := wire.OpenSerial(cfg.Serial, cfg.Baud)
				if err != nil {
					log.Error("serial %s: %v", cfg.Serial, err)
					return
				}
				serve(ctx, port, cfg.Serial, store, tracker, log)
			}
		}()
	}

	var ln net.Listener
	if cfg.Addr != "" {
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			cli.ExitWithError("listen %s: %v", cfg.Addr, err)
		}
		fmt.Println("trapmon serving", man.Name, "on", ln.Addr().String())
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					select {
					case <-ctx.Done():
						return
					default:
					}
					continue
				}
				go serve(ctx, conn, conn.RemoteAddr().String(), store, tracker, log)
			}
		}()
	}

	<-ctx.Done()
	if ln != nil {
		_ = ln.Close()
	}
	fmt.Println("trapmon stopped")
}
