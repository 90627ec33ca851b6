package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"node-pulse/pkg/app"
	"node-pulse/pkg/config"
	"node-pulse/pkg/logging"
	"node-pulse/pkg/model"
	"node-pulse/pkg/version"
)

func main() {
	boot := logging.New("warn", "text")
	config.LoadDotEnv(boot)
	cfg, err := config.FromEnv()
	if err != nil {
		boot.WithError(err).Fatal("configuration error")
	}
	// the CLI needs fresh results and no shared state
	cfg.CacheBackend = "none"

	asJSON := flag.Bool("json", false, "print every snapshot as JSON only")
	only := flag.String("node", "", "run diagnostics for a single node")
	flag.StringVar(&cfg.CheckMode, "mode", cfg.CheckMode, "check backend: live|mock (env CHECK_MODE)")
	flag.StringVar(&cfg.NodesFile, "nodes", cfg.NodesFile, "JSON node inventory (env NODES_FILE)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("diagnostics"))
		return
	}
	if cfg.NodesFile != "" && cfg.NodesSource == "builtin" {
		cfg.NodesSource = "file"
	}

	logger := logging.New(cfg.LogLevel, "text")
	if os.Getenv("LOG_LEVEL") == "" {
		logger.SetLevel(logging.ParseLevel("warn"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.WithError(err).Fatal("setup failed")
	}
	defer a.Close()

	var snaps []model.NodeSnapshot
	if *only != "" {
		snap, err := a.Collector.Snapshot(ctx, *only)
		if err != nil {
			logger.WithError(err).Fatal("diagnostics failed")
		}
		snaps = append(snaps, snap)
	} else {
		snaps, err = a.Collector.Collect(ctx)
		if err != nil {
			logger.WithError(err).Warn("some nodes could not be checked")
		}
	}

	if err := report(os.Stdout, cfg.CheckMode, snaps, *asJSON); err != nil {
		logger.WithError(err).Fatal("write report")
	}
}

// report prints a readable block per node followed by the JSON snapshot of
// the first node, or only JSON when asJSON is set.
func report(w io.Writer, mode string, snaps []model.NodeSnapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}
	fmt.Fprintf(w, "Running %s diagnostics...\n\n", mode)
	for _, s := range snaps {
		fmt.Fprintln(w, formatSnapshot(s))
		fmt.Fprint(w, "\n---\n\n")
	}
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No nodes configured.")
		return nil
	}
	fmt.Fprint(w, "JSON payload for first node:\n\n")
	b, err := json.MarshalIndent(snaps[0], "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func formatSnapshot(s model.NodeSnapshot) string {
	out := fmt.Sprintf("Node: %s (%s)\n  Overall: %s @ %s",
		s.Node.Name, s.Node.Address, s.OverallStatus, model.FormatTimestamp(s.CheckedAt))
	for _, r := range s.Services {
		out += fmt.Sprintf("\n  - %s: %s - %s", r.Name, r.Status, r.Details)
	}
	return out
}
