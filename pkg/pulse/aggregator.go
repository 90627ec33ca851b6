// Package pulse runs the node checks and reduces them into snapshots.
package pulse

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"node-pulse/pkg/check"
	"node-pulse/pkg/metrics"
	"node-pulse/pkg/model"
)

// DefaultCheckTimeout bounds a single check when no timeout is configured.
const DefaultCheckTimeout = 5 * time.Second

// Aggregator evaluates the fixed service set of a node and folds the results
// into one snapshot.
type Aggregator struct {
	services []check.Service
	timeout  time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCheckTimeout bounds each check invocation.
func WithCheckTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock overrides the snapshot clock.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func WithLogger(l logrus.FieldLogger) AggregatorOption {
	return func(a *Aggregator) { a.log = l }
}

func WithMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator copies services; their order is the display order of every
// snapshot.
func NewAggregator(services []check.Service, opts ...AggregatorOption) (*Aggregator, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("at least one service is required")
	}
	seen := make(map[model.ServiceName]struct{}, len(services))
	for _, s := range services {
		if s.Name == "" || s.Checker == nil {
			return nil, fmt.Errorf("service %q is incomplete", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("duplicate service %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	a := &Aggregator{
		services: append([]check.Service(nil), services...),
		timeout:  DefaultCheckTimeout,
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// ServiceNames lists the configured services in order.
func (a *Aggregator) ServiceNames() []model.ServiceName {
	out := make([]model.ServiceName, 0, len(a.services))
	for _, s := range a.services {
		out = append(out, s.Name)
	}
	return out
}

// Snapshot runs every check of node concurrently and returns the assembled
// snapshot. Check failures, timeouts and panics become FAIL results. An error
// is returned only when ctx ends first, in which case no partial snapshot is
// produced.
func (a *Aggregator) Snapshot(ctx context.Context, node model.Node) (model.NodeSnapshot, error) {
	results := make(model.Services, len(a.services))
	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range a.services {
		g.Go(func() error {
			res, err := a.run(gctx, svc, node)
			if err != nil {
				return err
			}
			results[i] = model.ServiceResult{Name: svc.Name, CheckResult: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.NodeSnapshot{}, fmt.Errorf("collect %s: %w", node.Name, err)
	}
	snap := model.NewSnapshot(node, a.now().Truncate(time.Microsecond), results)
	a.metrics.ObserveSnapshot(snap)
	return snap, nil
}

// run evaluates one check under the per-check deadline. It returns an error
// only when the parent context is done.
func (a *Aggregator) run(ctx context.Context, svc check.Service, node model.Node) (model.CheckResult, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan model.CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.WithFields(logrus.Fields{"node": node.Name, "service": svc.Name}).
					Errorf("check panicked: %v", r)
				done <- model.CheckResult{Status: model.StatusFail, Details: fmt.Sprintf("Check crashed: %v", r)}
			}
		}()
		done <- svc.Checker.Evaluate(cctx, node)
	}()

	var res model.CheckResult
	timedOut := false
	select {
	case res = <-done:
	case <-cctx.Done():
		timedOut = true
	}
	if err := ctx.Err(); err != nil {
		return model.CheckResult{}, err
	}
	if timedOut {
		res = model.CheckResult{
			Status:  model.StatusFail,
			Details: fmt.Sprintf("Check timeout after %s; no response from node.", a.timeout),
		}
	}
	res = normalize(res)
	elapsed := time.Since(start)
	a.metrics.ObserveCheck(svc.Name, res.Status, elapsed, timedOut)
	entry := a.log.WithFields(logrus.Fields{
		"node":     node.Name,
		"service":  svc.Name,
		"status":   res.Status.String(),
		"duration": elapsed.String(),
	})
	if timedOut {
		entry.Warn("check timed out")
	} else {
		entry.Debug("check finished")
	}
	return res, nil
}

var genericDetails = map[model.Status]string{
	model.StatusOK:   "No issues detected.",
	model.StatusWarn: "Degraded condition reported; investigate soon.",
	model.StatusFail: "Check failed without further detail.",
}

// normalize maps out-of-range statuses to FAIL and fills empty details.
func normalize(res model.CheckResult) model.CheckResult {
	if !res.Status.Valid() {
		res = model.CheckResult{
			Status:  model.StatusFail,
			Details: fmt.Sprintf("Check returned invalid status %d.", int(res.Status)),
		}
	}
	if res.Details == "" {
		res.Details = genericDetails[res.Status]
	}
	return res
}
