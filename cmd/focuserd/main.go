package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"go.uber.org/multierr"

	"github.com/cjeanneret/focuser/internal/config"
	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/focuser"
	"github.com/cjeanneret/focuser/internal/hw/gpio"
	"github.com/cjeanneret/focuser/internal/server"
	"github.com/cjeanneret/focuser/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start status monitor on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "focuser.yaml"), "path to config file")
	mock := flag.Bool("mock", false, "use mock GPIO (overrides gpio.mock)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("focuserd %s\n", version)
		return
	}

	cfg, savePath, err := loadConfig(*cfgPath, flagSet("config"), flag.Args())
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *mock {
		cfg.GPIO.Mock = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize debug system
	debug.Init(cfg.DebugLevel)
	debug.Summary("focuserd " + version)
	debug.Value("Debug level", debug.Level())
	debug.Value("Config path", savePath)
	debug.Value("Port", cfg.Focuser.Port)
	debug.Value("DIR pin", cfg.Focuser.DirPin)
	debug.Value("STEP pin", cfg.Focuser.StepPin)
	debug.Value("ENBL pin", cfg.Focuser.EnablePin)
	debug.Section("Configuration")
	debug.PrintStruct("Focuser config", cfg.Focuser)
	debug.PrintStruct("GPIO config", cfg.GPIO)

	if err := run(ctx, cfg, savePath, webPort.port()); err != nil {
		log.Fatalf("focuserd: %v", err)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [flags] [port dir-pin step-pin enable-pin]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadConfig builds the startup configuration. The four positional
// arguments override the file; when they are given without -config the
// file is not read at all. The returned path is where SAVE writes, empty
// when no file was loaded.
func loadConfig(path string, explicit bool, args []string) (*config.Config, string, error) {
	if len(args) != 0 && len(args) != 4 {
		return nil, "", fmt.Errorf("expected 0 or 4 positional arguments (port dir-pin step-pin enable-pin), got %d", len(args))
	}

	var cfg *config.Config
	savePath := ""
	if len(args) == 4 && !explicit {
		cfg = config.Default()
	} else {
		if err := config.ValidateConfigPath(path); err != nil {
			return nil, "", err
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg, savePath = loaded, path
	}

	if len(args) == 4 {
		if err := applyPositional(cfg, args); err != nil {
			return nil, "", err
		}
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
	}
	return cfg, savePath, nil
}

// applyPositional sets port, dir-pin, step-pin and enable-pin from args.
func applyPositional(cfg *config.Config, args []string) error {
	names := [4]string{"port", "dir-pin", "step-pin", "enable-pin"}
	var v [4]int
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("%s: %w", names[i], err)
		}
		v[i] = n
	}
	cfg.Focuser.Port = v[0]
	cfg.Focuser.DirPin = v[1]
	cfg.Focuser.StepPin = v[2]
	cfg.Focuser.EnablePin = v[3]
	return nil
}

// run opens the GPIO, serves clients until ctx is cancelled and leaves the
// motor driver disabled.
func run(ctx context.Context, cfg *config.Config, cfgPath string, webPort int) (err error) {
	drv, err := gpio.NewDriver(gpio.Options{
		Mock:    cfg.GPIO.Mock,
		Backend: cfg.GPIO.Backend,
		Chip:    cfg.GPIO.Chip,
	})
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}

	ctrl, err := focuser.New(drv, cfg, cfgPath)
	if err != nil {
		return multierr.Append(err, drv.Close())
	}
	defer func() {
		if cerr := ctrl.Close(); cerr != nil {
			log.Printf("closing GPIO failed: %v", cerr)
		}
		debug.Info("GPIO released")
	}()

	srv := server.New(cfg.Addr(), ctrl)
	if webPort == 0 {
		return srv.Run(ctx)
	}

	broadcaster := web.NewBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(broadcaster)))
	ctrl.OnUpdate(broadcaster.Status)

	mon, err := web.NewServer(fmt.Sprintf(":%d", webPort), broadcaster, ctrl)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The monitor is optional: a failure is logged and the focuser keeps serving.
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		if err := mon.Run(ctx); err != nil {
			log.Printf("status monitor: %v", err)
		}
	}()

	err = srv.Run(ctx)
	cancel()
	<-monDone
	return err
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
