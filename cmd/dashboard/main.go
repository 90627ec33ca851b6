package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"node-pulse/pkg/api"
	"node-pulse/pkg/app"
	"node-pulse/pkg/config"
	"node-pulse/pkg/logging"
	"node-pulse/pkg/model"
	"node-pulse/pkg/pulse"
	"node-pulse/pkg/version"
)

func main() {
	boot := logging.New("info", "json")
	config.LoadDotEnv(boot)
	cfg, err := config.FromEnv()
	if err != nil {
		boot.WithError(err).Fatal("configuration error")
	}

	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address (env LISTEN_ADDR)")
	flag.StringVar(&cfg.NodesFile, "nodes", cfg.NodesFile, "JSON node inventory; implies -source file (env NODES_FILE)")
	flag.StringVar(&cfg.NodesSource, "source", cfg.NodesSource, "node inventory: builtin|file|consul (env NODES_SOURCE)")
	flag.StringVar(&cfg.CheckMode, "mode", cfg.CheckMode, "check backend: live|mock (env CHECK_MODE)")
	flag.StringVar(&cfg.CacheBackend, "cache", cfg.CacheBackend, "snapshot cache: none|memory|redis (env CACHE_BACKEND)")
	flag.DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "if >0, collect periodically and push to /ws/nodes (env REFRESH_INTERVAL)")
	flag.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS cert path (enables HTTPS if set with -tls-key)")
	flag.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS key path (enables HTTPS if set with -tls-cert)")
	flag.StringVar(&cfg.TLSClientCA, "client-ca", cfg.TLSClientCA, "require and verify client certs using this CA (optional)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("dashboard"))
		return
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["nodes"] && !set["source"] {
		cfg.NodesSource = "file"
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("dashboard stopped")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := api.NewHub(logger)
	defer hub.Close()

	mux := http.NewServeMux()
	if err := api.RegisterRoutes(mux, api.Deps{
		Fleet:    a.Collector,
		Hub:      hub,
		Logger:   logger,
		Metrics:  a.Metrics,
		Gatherer: reg,
	}); err != nil {
		return err
	}

	refresher := &pulse.Refresher{
		Fleet:    a.Collector,
		Interval: cfg.RefreshInterval,
		Logger:   logger,
		Publish: func(snaps []model.NodeSnapshot) {
			hub.Publish(api.WSMessage{Type: "nodes", Payload: api.Summaries(snaps)})
		},
	}
	go refresher.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.TLSCert != "" {
		tlsCfg, err := api.ServerTLSConfig(cfg.TLSCert, cfg.TLSKey, cfg.TLSClientCA)
		if err != nil {
			return fmt.Errorf("build TLS config: %w", err)
		}
		srv.TLSConfig = tlsCfg
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.ListenAddr,
			"tls":     srv.TLSConfig != nil,
			"mode":    cfg.CheckMode,
			"cache":   cfg.CacheBackend,
			"version": version.Build,
		}).Info("dashboard listening")
		if srv.TLSConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
