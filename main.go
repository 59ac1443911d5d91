package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/changesync"
	"github.com/any-hub/npmcache/internal/config"
	"github.com/any-hub/npmcache/internal/logging"
	"github.com/any-hub/npmcache/internal/prefetch"
	"github.com/any-hub/npmcache/internal/proxy"
	"github.com/any-hub/npmcache/internal/server"
	"github.com/any-hub/npmcache/internal/stats"
	"github.com/any-hub/npmcache/internal/version"
)

// cliOptions summarizes the parsed CLI flags, kept injectable for tests.
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run executes the requested action and returns a process exit code.
func run(opts cliOptions) int {
	if opts.showVersion {
		fmt.Fprintln(stdOut, version.Full())
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "init logger: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("config validated")
		return 0
	}

	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(stdErr, "init cache dir: %v\n", err)
		return 1
	}

	sink, err := stats.NewJSONLSink(cfg.StatsLogPath, cfg.LogMaxSize, cfg.LogMaxBackups, cfg.LogCompress)
	if err != nil {
		fmt.Fprintf(stdErr, "init stats sink: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)

	var prefetcher proxy.PrefetchTrigger
	if cfg.PrefetchEnabled {
		prefetcher = adaptPrefetcher(prefetch.New(
			httpClient, store, sink, logger, cfg.RegistryURL,
			cfg.PrefetchConcurrency, cfg.PrefetchMaxPackages,
		))
	}

	stripPipeline := proxy.NewStripPipeline(store, sink, logger, prefetcher, cfg.PrefetchConcurrency, 256)
	handler := proxy.NewHandler(httpClient, logger, store, sink, stripPipeline, cfg.RegistryURL)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      handler,
		ListenPort: cfg.ListenPort,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "build server: %v\n", err)
		return 1
	}

	cursorPath := cfg.DataDir + "/.sync-seq"
	synchronizer := changesync.New(
		httpClient, store, sink, logger,
		cursorPath, cfg.ChangesFeedURL, cfg.RegistryURL,
		cfg.SyncPageLimit, cfg.SyncConcurrency,
		cfg.PollInterval.DurationValue(), cfg.MaxBackoff.DurationValue(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncDone := make(chan struct{})
	go func() {
		synchronizer.Run(ctx)
		close(syncDone)
	}()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("starting")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.ListenPort))
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("listen_failed")
			return 1
		}
	case <-sig:
		logger.WithField("action", "shutdown").Info("signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace.DurationValue())
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server_shutdown_failed")
		}
		<-syncDone
	}

	return 0
}

// parseCLIFlags parses CLI arguments and resolves the config path from the
// NPMCACHE_CONFIG environment variable when no flag is given.
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("npmcache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "config file path (default ./config.toml, overridden by NPMCACHE_CONFIG)")
	fs.BoolVar(&checkOnly, "check-config", false, "validate config then exit")
	fs.BoolVar(&showVer, "version", false, "print version")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse flags: %w", err)
	}

	path := os.Getenv("NPMCACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{configPath: path, checkOnly: checkOnly, showVersion: showVer}, nil
}

// adaptPrefetcher adapts *prefetch.Prefetcher to proxy.PrefetchTrigger,
// discarding the context the strip pipeline's fire-and-forget call passes
// in favor of a background one so a client-triggered walk outlives the
// request that started it.
func adaptPrefetcher(p *prefetch.Prefetcher) proxy.PrefetchTrigger {
	return prefetchAdapter{p}
}

type prefetchAdapter struct {
	p *prefetch.Prefetcher
}

func (a prefetchAdapter) Walk(_ context.Context, trimmedBody []byte) {
	go a.p.Walk(context.Background(), trimmedBody)
}
