package pulse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"node-pulse/pkg/metrics"
	"node-pulse/pkg/model"
	"node-pulse/pkg/store"
)

// ErrNodeNotFound is returned when no configured node matches a name.
var ErrNodeNotFound = errors.New("node not found")

// Snapshotter produces the snapshot of one node.
type Snapshotter interface {
	Snapshot(ctx context.Context, node model.Node) (model.NodeSnapshot, error)
}

// CollectorOptions tunes fleet collection.
type CollectorOptions struct {
	// Concurrency caps how many nodes are collected at once.
	Concurrency int
	Cache       store.SnapshotStore
	CacheTTL    time.Duration
	Logger      logrus.FieldLogger
	Metrics     *metrics.Metrics
}

// Collector applies a Snapshotter to a fixed node set.
type Collector struct {
	nodes    []model.Node
	agg      Snapshotter
	limit    int
	cache    store.SnapshotStore
	cacheTTL time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	flight   singleflight.Group
}

// NewCollector validates nodes and keeps a sorted copy of them.
func NewCollector(nodes []model.Node, agg Snapshotter, opts CollectorOptions) (*Collector, error) {
	if agg == nil {
		return nil, fmt.Errorf("snapshotter is required")
	}
	seen := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if prev, dup := seen[n.Key()]; dup {
			return nil, fmt.Errorf("duplicate node name %q (conflicts with %q)", n.Name, prev)
		}
		seen[n.Key()] = n.Name
	}
	sorted := append([]model.Node(nil), nodes...)
	SortNodes(sorted)

	if opts.Concurrency <= 0 {
		opts.Concurrency = len(sorted)
		if opts.Concurrency == 0 {
			opts.Concurrency = 1
		}
	}
	if opts.Cache == nil || opts.CacheTTL <= 0 {
		opts.Cache = store.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Collector{
		nodes:    sorted,
		agg:      agg,
		limit:    opts.Concurrency,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// SortNodes orders nodes by lower-cased name, ties broken by the raw name.
func SortNodes(nodes []model.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if a != b {
			return a < b
		}
		return nodes[i].Name < nodes[j].Name
	})
}

// Nodes returns the configured nodes in display order.
func (c *Collector) Nodes() []model.Node {
	return append([]model.Node(nil), c.nodes...)
}

// Find resolves a node by case-insensitive exact name.
func (c *Collector) Find(name string) (model.Node, error) {
	for _, n := range c.nodes {
		if strings.EqualFold(n.Name, name) {
			return n, nil
		}
	}
	return model.Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
}

// Snapshot returns the snapshot of the named node.
func (c *Collector) Snapshot(ctx context.Context, name string) (model.NodeSnapshot, error) {
	node, err := c.Find(name)
	if err != nil {
		return model.NodeSnapshot{}, err
	}
	return c.snapshot(ctx, node)
}

// Collect snapshots every node. The result is name-sorted and holds only
// complete snapshots; nodes that could not be collected are omitted and
// reported through the joined error.
func (c *Collector) Collect(ctx context.Context) ([]model.NodeSnapshot, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCollect(time.Since(start)) }()

	slots := make([]*model.NodeSnapshot, len(c.nodes))
	errs := make([]error, len(c.nodes))
	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, node := range c.nodes {
		g.Go(func() error {
			snap, err := c.snapshot(ctx, node)
			if err != nil {
				errs[i] = err
				return nil
			}
			slots[i] = &snap
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.NodeSnapshot, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, errors.Join(errs...)
}

func (c *Collector) snapshot(ctx context.Context, node model.Node) (model.NodeSnapshot, error) {
	key := node.Key()
	if snap, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.WithError(err).WithField("node", node.Name).Warn("snapshot cache read failed")
	} else if ok {
		c.metrics.CacheLookup(true)
		return snap, nil
	}
	c.metrics.CacheLookup(false)

	// Concurrent misses share one run. The run is detached from the first
	// caller so its cancellation does not fail the others; the per-check
	// deadline still bounds it.
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		snap, err := c.agg.Snapshot(context.WithoutCancel(ctx), node)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Put(context.WithoutCancel(ctx), key, snap, c.cacheTTL); err != nil {
			c.log.WithError(err).WithField("node", node.Name).Warn("snapshot cache write failed")
		}
		return snap, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return model.NodeSnapshot{}, res.Err
		}
		return res.Val.(model.NodeSnapshot), nil
	case <-ctx.Done():
		return model.NodeSnapshot{}, fmt.Errorf("collect %s: %w", node.Name, ctx.Err())
	}
}
