package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"empacy/internal/version"
	"empacy/pkg/agent"
	"empacy/pkg/bundle"
	"empacy/pkg/config"
	"empacy/pkg/coordinator"
	"empacy/pkg/language"
	"empacy/pkg/logging"
	"empacy/pkg/scaffold"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// cleanupInterval is how often serve drops expired context packages.
const cleanupInterval = time.Hour

type serveConfig struct {
	stdio       bool
	socket      string
	metricsAddr string
	watch       bool
}

func newServeCmd() *cobra.Command {
	var sc serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination server",
		Long: "Runs the coordinator on a Unix socket (or stdin/stdout with --stdio).\n" +
			"Requests are line-delimited JSON: {\"id\":..,\"op\":..,\"params\":{..}}.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s, _ := cmd.Flags().GetString("socket"); s != "" {
				sc.socket = s
			}
			sc.watch, _ = cmd.Flags().GetBool("watch")
			return runServe(cmd.Context(), sc, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.Flags().Changed("watch"))
		},
	}

	cmd.Flags().BoolVar(&sc.stdio, "stdio", false, "serve requests on stdin/stdout instead of a socket")
	cmd.Flags().StringVar(&sc.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().Bool("watch", false, "redistribute context packages when their files change")

	return cmd
}

func runServe(ctx context.Context, sc serveConfig, in io.Reader, out, errOut io.Writer, watchSet bool) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return err
	}
	if sc.socket != "" {
		cfg.Server.Socket = sc.socket
	}
	if sc.metricsAddr != "" {
		cfg.Server.MetricsAddr = sc.metricsAddr
	}
	if watchSet {
		cfg.Context.Watch = sc.watch
	}
	maxAge, err := cfg.MaxAge()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLog() //nolint:errcheck // best-effort on shutdown

	startup := newStartupLog(errOut, isTerminal(errOut))
	if cfg.Source != "" {
		startup.Step("config loaded from %s", cfg.Source)
	}

	agents := agent.NewManager(agent.WithLogger(logger))
	contexts := bundle.NewManager(bundle.WithLogger(logger), bundle.WithParallelism(cfg.Context.Parallelism))
	lang := language.NewManager(language.WithLogger(logger))
	scaff := scaffold.New(cfg.Projects.Root, scaffold.WithLogger(logger))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithVersion(version.String()),
		coordinator.WithMetrics(coordinator.MustNewMetrics(reg)),
	}

	if cfg.Journal.On() {
		stop := startup.StartSpinner("opening journal " + cfg.Journal.Path)
		db, j, err := openJournal(ctx, cfg.Journal.Path)
		stop(err)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, coordinator.WithJournal(j))
	}

	var watcher *bundle.Watcher
	if cfg.Context.Watch {
		watcher, err = bundle.NewWatcher(contexts, logger, func(pkg bundle.Package) {
			logger.Info("context refreshed from disk", "agentId", pkg.AgentID, "version", pkg.Version)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
		opts = append(opts, coordinator.WithWatcher(watcher))
		startup.Step("watching context files")
	}

	srv := coordinator.NewServer(coordinator.New(agents, contexts, lang, scaff, opts...))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		runCleanup(gctx, contexts, maxAge, cleanupInterval, logger)
		return nil
	})
	if cfg.Server.MetricsAddr != "" {
		startMetricsServer(gctx, g, cfg.Server.MetricsAddr, reg, logger)
		startup.Step("metrics on http://%s/metrics", cfg.Server.MetricsAddr)
	}

	g.Go(func() error {
		defer cancel()
		if sc.stdio {
			startup.Step("serving on stdio")
			return srv.ServeStdio(gctx, in, out)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Server.Socket), 0o755); err != nil {
			return fmt.Errorf("create socket dir: %w", err)
		}
		startup.Step("listening on %s", cfg.Server.Socket)
		return srv.ListenAndServe(gctx, cfg.Server.Socket)
	})

	return g.Wait()
}

// runCleanup drops context packages older than maxAge every interval until
// ctx is cancelled.
func runCleanup(ctx context.Context, contexts *bundle.Manager, maxAge, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := contexts.CleanupOldContext(maxAge); n > 0 {
				logger.Info("expired context packages dropped", "count", n)
			}
		}
	}
}

func startMetricsServer(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
		return nil
	})
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
