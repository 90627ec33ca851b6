// Package app assembles the collector from configuration. Both binaries
// share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"node-pulse/pkg/check"
	"node-pulse/pkg/config"
	"node-pulse/pkg/inventory"
	"node-pulse/pkg/metrics"
	"node-pulse/pkg/pulse"
	"node-pulse/pkg/store"
)

const meshWarnLatency = 150 * time.Millisecond

// App owns the collector and the resources behind it.
type App struct {
	Collector *pulse.Collector
	Metrics   *metrics.Metrics

	closers []io.Closer
}

// New loads the inventory and wires probes, aggregator, cache and collector.
// reg may be nil when metrics are not exported.
func New(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{}
	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	src, err := inventory.New(inventory.Options{
		Source:       cfg.NodesSource,
		File:         cfg.NodesFile,
		ConsulAddr:   cfg.ConsulAddr,
		ConsulPrefix: cfg.ConsulPrefix,
	})
	if err != nil {
		return nil, err
	}
	nodes, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	logger.WithFields(logrus.Fields{"source": cfg.NodesSource, "nodes": len(nodes)}).Info("inventory loaded")

	probes, err := a.probes(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	agg, err := pulse.NewAggregator(check.Services(probes),
		pulse.WithCheckTimeout(cfg.CheckTimeout),
		pulse.WithLogger(logger),
		pulse.WithMetrics(a.Metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	cache, err := a.cache(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Collector, err = pulse.NewCollector(nodes, agg, pulse.CollectorOptions{
		Concurrency: cfg.FleetConcurrency,
		Cache:       cache,
		CacheTTL:    cfg.CacheTTL,
		Logger:      logger,
		Metrics:     a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) probes(cfg config.Config, logger logrus.FieldLogger) (check.Probes, error) {
	if cfg.CheckMode == "mock" {
		logger.Info("using mock checks")
		return check.NewMock(uint64(time.Now().UnixNano())), nil
	}

	vpn := check.VPNCheck{
		Interface:       cfg.WGInterface,
		MaxHandshakeAge: cfg.WGHandshakeMaxAge,
		SSHPort:         cfg.SSHPort,
		Now:             time.Now,
	}
	if cfg.WGInterface != "" {
		dev, closer, err := check.OpenWireGuard()
		if err != nil {
			return nil, err
		}
		vpn.Device = dev
		a.closers = append(a.closers, closer)
	}
	if cfg.SSHUser != "" && cfg.SSHKeyFile != "" {
		sshCfg, err := check.SSHConfig(cfg.SSHUser, cfg.SSHKeyFile, cfg.SSHKnownHosts, cfg.CheckTimeout)
		if err != nil {
			return nil, err
		}
		vpn.SSH = sshCfg
	}

	return check.NewLive(check.LiveOptions{
		Mgmt: check.MgmtOptions{
			Scheme:     cfg.MgmtScheme,
			Port:       cfg.MgmtPort,
			HTTPClient: &http.Client{Timeout: cfg.CheckTimeout},
			Logger:     logger,
		},
		ExpectedPLMN:    cfg.ExpectedPLMN,
		Ping:            check.SystemPing(3, cfg.MeshFallbackPort),
		MeshWarnLatency: meshWarnLatency,
		VPN:             vpn,
	}), nil
}

func (a *App) cache(ctx context.Context, cfg config.Config) (store.SnapshotStore, error) {
	switch cfg.CacheBackend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		client, err := store.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return store.NewRedisStore(client, ""), nil
	}
	return store.Nop{}, nil
}

// Close releases the WireGuard and Redis clients.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
