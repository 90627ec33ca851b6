package pulse

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"node-pulse/pkg/model"
)

// Fleet gathers snapshots of every node.
type Fleet interface {
	Collect(ctx context.Context) ([]model.NodeSnapshot, error)
}

// Refresher collects the fleet on a fixed interval and hands every result to
// Publish. A cycle that overruns the interval delays the next one.
type Refresher struct {
	Fleet    Fleet
	Interval time.Duration
	Publish  func([]model.NodeSnapshot)
	Logger   logrus.FieldLogger
}

// Run blocks until ctx is done. The first cycle starts immediately.
func (r *Refresher) Run(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	log := r.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		r.cycle(ctx, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Refresher) cycle(ctx context.Context, log logrus.FieldLogger) {
	snaps, err := r.Fleet.Collect(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.WithError(err).WithField("collected", len(snaps)).Warn("refresh incomplete")
	}
	if r.Publish != nil {
		r.Publish(snaps)
	}
}
