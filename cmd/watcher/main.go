package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/snapwatchhq/watcher/internal/config"
	"github.com/snapwatchhq/watcher/internal/events"
	"github.com/snapwatchhq/watcher/internal/logging"
	"github.com/snapwatchhq/watcher/internal/metrics"
	"github.com/snapwatchhq/watcher/internal/notify"
	"github.com/snapwatchhq/watcher/internal/probe"
	"github.com/snapwatchhq/watcher/internal/scan"
	"github.com/snapwatchhq/watcher/internal/server"
	"github.com/snapwatchhq/watcher/internal/watcher"
)

const (
	defaultStopTimeout = 5 * time.Second
	eventRingCapacity  = 128
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "check":
		err = check(ctx, os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to watcher configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New()
	logger.Printf("watcher starting (dir=%s, api=%s)", cfg.Watch.Dir, cfg.API.ListenAddr)

	metricsStore := metrics.NewStore()
	eventRing := events.NewRing(eventRingCapacity)

	notifier, err := newNotifier(cfg, logger, metricsStore)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	path := *configPath
	w := watcher.New(cfg, watcher.Dependencies{
		Logger:   logger,
		Emitter:  notifier,
		Recorder: eventRing,
		Metrics:  metricsStore,
		Reload: func(ctx context.Context) (config.Config, error) {
			return config.Load(ctx, path)
		},
	})

	srv := server.New(
		server.Config{Addr: cfg.API.ListenAddr},
		server.Dependencies{
			Logger:  logger,
			Watcher: w,
			Metrics: metricsStore,
			Events:  eventRing,
		},
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.API.AutoStart {
		if ok, err := w.Start(runCtx); err != nil {
			return fmt.Errorf("autostart watcher: %w", err)
		} else if ok {
			logger.Printf("watcher autostarted")
		}
	}

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		return serveAPI(groupCtx, srv, logger)
	})

	grp.Go(func() error {
		<-groupCtx.Done()
		if w.Running() && !w.Stop(defaultStopTimeout) {
			logger.Printf("watcher did not confirm stop within %s", defaultStopTimeout)
		}
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Printf("watcher exited")
	return nil
}

// check runs one probe and one scan against the current config — a
// quick way to verify wiring without starting the loop.
func check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to watcher configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New()
	deps := probe.Dependencies{Logger: logger}
	var prober probe.Prober
	if cfg.Device.HealthURL != "" {
		prober = probe.NewHTTPProber(cfg.Device.HealthURL, cfg.Device.Timeout(), deps)
	} else {
		prober = probe.NewPingProber(cfg.Device.PingHost, cfg.Device.Timeout(), deps)
	}

	up := prober.Probe(ctx)
	fmt.Printf("device reachable: %t\n", up)

	files, err := scan.Scan(cfg.Watch.Dir, scan.NormalizeExts(cfg.Watch.Extensions))
	if err != nil {
		return fmt.Errorf("scan watch dir: %w", err)
	}
	fmt.Printf("matching files in %s: %d\n", cfg.Watch.Dir, len(files))
	return nil
}

func newNotifier(cfg config.Config, logger *log.Logger, store *metrics.Store) (*notify.Client, error) {
	templates := make(map[string]notify.Template, len(cfg.Ntfy.Templates))
	for name, tpl := range cfg.Ntfy.Templates {
		templates[name] = notify.Template{
			Title:    tpl.Title,
			Priority: tpl.Priority,
			Tags:     tpl.Tags,
			Message:  tpl.Message,
		}
	}

	var limiter *rate.Limiter
	if cfg.Ntfy.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Ntfy.RatePerMinute)/60.0), cfg.Ntfy.RatePerMinute)
	}

	return notify.NewClient(
		notify.Config{
			Server: cfg.Ntfy.Server,
			Topic:  cfg.Ntfy.Topic,
			Defaults: notify.Template{
				Title:    cfg.Ntfy.Defaults.Title,
				Priority: cfg.Ntfy.Defaults.Priority,
				Tags:     cfg.Ntfy.Defaults.Tags,
				Message:  cfg.Ntfy.Defaults.Message,
			},
			Templates: templates,
			Vars:      cfg.Ntfy.Vars,
		},
		notify.Dependencies{
			Logger:  logger,
			Limiter: limiter,
			Metrics: store,
		},
	)
}

func serveAPI(ctx context.Context, srv *server.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("control API listening on http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func printUsage() {
	fmt.Println("snapwatch watcher")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  snapwatch run [--config /etc/snapwatch/watcher.yaml]")
	fmt.Println("  snapwatch check [--config /etc/snapwatch/watcher.yaml]")
}
