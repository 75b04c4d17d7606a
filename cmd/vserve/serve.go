package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vango-dev/vserve"
	"github.com/vango-dev/vserve/internal/config"
	devtools "github.com/vango-dev/vserve/internal/dev"
	"github.com/vango-dev/vserve/internal/logging"
	"github.com/vango-dev/vserve/pkg/render"
	"github.com/vango-dev/vserve/pkg/server"
)

type serveFlags struct {
	config  string
	port    int
	host    string
	socket  string
	listen  []string
	metrics string
	noWatch bool
}

func startCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the production server",
		Long: `Start the production server.

Configuration is read from vserve.yaml (or --config), then VSERVE_
environment variables, then flags.

Examples:
  vserve start
  vserve start --port=8080 --host=0.0.0.0
  vserve start --socket=/run/app.sock --listen=127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f, false)
		},
	}
	addServeFlags(cmd, &f)
	return cmd
}

func devCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the server in development mode.

Middleware that cannot be resolved is skipped instead of failing
startup, errors are shown in full, and connected browsers reload when
the static directory or the build output changes.

Examples:
  vserve dev
  vserve dev --port=8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f, true)
		},
	}
	addServeFlags(cmd, &f)
	cmd.Flags().BoolVar(&f.noWatch, "no-watch", false, "Do not watch files for changes")
	return cmd
}

func addServeFlags(cmd *cobra.Command, f *serveFlags) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Config file (default vserve.yaml when present)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&f.host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&f.socket, "socket", "", "Unix socket to listen on instead of host and port")
	cmd.Flags().StringArrayVar(&f.listen, "listen", nil, "Additional endpoint, host:port or unix:/path (repeatable)")
	cmd.Flags().StringVar(&f.metrics, "metrics", "", "Address to serve prometheus metrics on, e.g. :9090")
}

// overrides collects the flags the user set, keyed by config path.
func (f serveFlags) overrides(cmd *cobra.Command) map[string]any {
	values := make(map[string]any)
	if cmd.Flags().Changed("port") {
		values["server.port"] = f.port
	}
	if cmd.Flags().Changed("host") {
		values["server.host"] = f.host
	}
	if cmd.Flags().Changed("socket") {
		values["server.socket"] = f.socket
	}
	return values
}

func runServe(cmd *cobra.Command, f serveFlags, dev bool) error {
	extra, err := parseEndpoints(f.listen)
	if err != nil {
		return err
	}

	loadOpts := []config.Option{
		config.WithConfigFile(f.config),
		config.WithOverrides(f.overrides(cmd)),
	}
	if dev {
		loadOpts = append(loadOpts, config.WithDev())
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}
	if dev {
		cfg.Options.Debug = true
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	spa := render.SPAOptions{}
	if dev {
		spa.DevScripts = []string{devtools.ClientPath(cfg.Options)}
	}
	app := vserve.New(vserve.Config{
		Options:  cfg.Options,
		Renderer: render.NewSPA(spa),
		Registry: reg,
		Logger:   logger,
	})

	printBanner()
	if dev {
		fmt.Println("  dev")
	}
	fmt.Println()

	app.Hooks().Listen.On(func(_ context.Context, ev server.ListenEvent) error {
		success("Listening on %s", ev.Record.URL)
		return nil
	})

	if err := app.Ready(ctx); err != nil {
		return err
	}
	if dev {
		if _, err := devtools.Attach(ctx, app.Server(), devtools.Options{
			NoWatch: f.noWatch,
			Logger:  logger,
		}); err != nil {
			return err
		}
	}
	if f.metrics != "" {
		go serveMetrics(ctx, f.metrics, reg, logger)
	}

	endpoints := append([][]server.ListenOption{nil}, extra...)
	return app.Run(ctx, endpoints...)
}

// parseEndpoints parses --listen values: "unix:/path" or "host:port".
func parseEndpoints(args []string) ([][]server.ListenOption, error) {
	endpoints := make([][]server.ListenOption, 0, len(args))
	for _, arg := range args {
		if path, ok := strings.CutPrefix(arg, "unix:"); ok {
			if path == "" {
				return nil, fmt.Errorf("invalid --listen %q: empty socket path", arg)
			}
			endpoints = append(endpoints, []server.ListenOption{server.WithSocket(path)})
			continue
		}

		host, portStr, err := net.SplitHostPort(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid --listen %q: %w", arg, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("invalid --listen %q: bad port %q", arg, portStr)
		}
		opts := []server.ListenOption{server.WithSocket(""), server.WithPort(port)}
		if host != "" {
			opts = append(opts, server.WithHost(host))
		}
		endpoints = append(endpoints, opts)
	}
	return endpoints, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", zap.Error(err))
	}
}
