package pulse

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-pulse/pkg/check"
	"node-pulse/pkg/logging"
	"node-pulse/pkg/metrics"
	"node-pulse/pkg/model"
)

var alpha = model.Node{Name: "Node Alpha", Address: "192.168.10.2"}

func fixedServices(statuses ...model.Status) []check.Service {
	names := []model.ServiceName{
		model.ServiceENodeB, model.ServiceTransmitParameters, model.ServiceMeshRadio,
		model.ServiceVPNVM, model.CellService(1), model.CellService(2),
	}
	out := make([]check.Service, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, check.Service{Name: names[i], Checker: check.Fixed(s, string(names[i])+" says "+s.String())})
	}
	return out
}

func allOK() []check.Service {
	return fixedServices(model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK)
}

func newAggregator(t *testing.T, services []check.Service, opts ...AggregatorOption) *Aggregator {
	t.Helper()
	opts = append([]AggregatorOption{WithLogger(logging.Discard())}, opts...)
	a, err := NewAggregator(services, opts...)
	require.NoError(t, err)
	return a
}

func TestSnapshotReduction(t *testing.T) {
	cases := []struct {
		name     string
		statuses []model.Status
		want     model.Status
	}{
		{"all ok", []model.Status{model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK}, model.StatusOK},
		{"one warn", []model.Status{model.StatusOK, model.StatusOK, model.StatusWarn, model.StatusOK, model.StatusOK, model.StatusOK}, model.StatusWarn},
		{"warn and fail", []model.Status{model.StatusWarn, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusOK, model.StatusFail}, model.StatusFail},
		{"all fail", []model.Status{model.StatusFail, model.StatusFail, model.StatusFail, model.StatusFail, model.StatusFail, model.StatusFail}, model.StatusFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := newAggregator(t, fixedServices(tc.statuses...)).Snapshot(context.Background(), alpha)
			require.NoError(t, err)
			assert.Equal(t, tc.want, snap.OverallStatus)
		})
	}
}

func TestSnapshotCompleteAndOrdered(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 987654321, time.UTC)
	agg := newAggregator(t, check.Services(check.NewMock(3)), WithClock(func() time.Time { return fixed }))

	for i := 0; i < 50; i++ {
		snap, err := agg.Snapshot(context.Background(), alpha)
		require.NoError(t, err)
		assert.Equal(t, agg.ServiceNames(), snap.Services.Names())
		for _, r := range snap.Services {
			assert.NotEmpty(t, r.Details)
			assert.True(t, r.Status.Valid())
		}
		assert.Equal(t, alpha, snap.Node)
		assert.Equal(t, fixed.Truncate(time.Microsecond), snap.CheckedAt)
	}
}

func TestSnapshotIndependentOfCompletionOrder(t *testing.T) {
	statuses := []model.Status{model.StatusOK, model.StatusWarn, model.StatusOK, model.StatusFail, model.StatusOK, model.StatusWarn}
	base := fixedServices(statuses...)
	jittered := make([]check.Service, len(base))
	for i, s := range base {
		inner := s.Checker
		jittered[i] = check.Service{Name: s.Name, Checker: check.CheckFunc(func(ctx context.Context, n model.Node) model.CheckResult {
			time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
			return inner.Evaluate(ctx, n)
		})}
	}

	want := map[model.ServiceName]model.CheckResult{}
	for i, s := range base {
		want[s.Name] = model.CheckResult{Status: statuses[i], Details: string(s.Name) + " says " + statuses[i].String()}
	}

	for i := 0; i < 20; i++ {
		perm := rand.Perm(len(jittered))
		shuffled := make([]check.Service, len(jittered))
		for to, from := range perm {
			shuffled[to] = jittered[from]
		}
		snap, err := newAggregator(t, shuffled).Snapshot(context.Background(), alpha)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFail, snap.OverallStatus)
		got := map[model.ServiceName]model.CheckResult{}
		for _, r := range snap.Services {
			got[r.Name] = r.CheckResult
		}
		assert.Equal(t, want, got)
	}
}

func TestSnapshotTimeoutContainment(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	services := allOK()
	services[2] = check.Service{Name: model.ServiceMeshRadio, Checker: check.CheckFunc(func(context.Context, model.Node) model.CheckResult {
		<-block
		return model.CheckResult{Status: model.StatusOK, Details: "late"}
	})}
	reg := prometheus.NewRegistry()
	agg := newAggregator(t, services, WithCheckTimeout(time.Second), WithMetrics(metrics.New(reg)))

	start := time.Now()
	snap, err := agg.Snapshot(context.Background(), alpha)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 1200*time.Millisecond)
	res, ok := snap.Services.Get(model.ServiceMeshRadio)
	require.True(t, ok)
	assert.Equal(t, model.StatusFail, res.Status)
	assert.Contains(t, res.Details, "timeout")
	assert.Equal(t, model.StatusFail, snap.OverallStatus)
	assert.Len(t, snap.Services, 6)
}

func TestSnapshotRecoversPanicsAndBadResults(t *testing.T) {
	services := allOK()
	services[0].Checker = check.CheckFunc(func(context.Context, model.Node) model.CheckResult { panic("driver exploded") })
	services[1].Checker = check.Fixed(model.Status(9), "bogus")
	services[3].Checker = check.Fixed(model.StatusWarn, "")

	snap, err := newAggregator(t, services).Snapshot(context.Background(), alpha)
	require.NoError(t, err)

	r0, _ := snap.Services.Get(model.ServiceENodeB)
	assert.Equal(t, model.StatusFail, r0.Status)
	assert.Contains(t, r0.Details, "driver exploded")

	r1, _ := snap.Services.Get(model.ServiceTransmitParameters)
	assert.Equal(t, model.StatusFail, r1.Status)

	r3, _ := snap.Services.Get(model.ServiceVPNVM)
	assert.Equal(t, model.StatusWarn, r3.Status)
	assert.NotEmpty(t, r3.Details)
}

func TestSnapshotCallerCancelled(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	services := allOK()
	services[5].Checker = check.CheckFunc(func(context.Context, model.Node) model.CheckResult {
		<-block
		return model.CheckResult{Status: model.StatusOK, Details: "late"}
	})
	agg := newAggregator(t, services, WithCheckTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	snap, err := agg.Snapshot(ctx, alpha)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, snap.Services)
}

func TestNewAggregatorValidation(t *testing.T) {
	_, err := NewAggregator(nil)
	assert.Error(t, err)

	dup := allOK()
	dup[1].Name = dup[0].Name
	_, err = NewAggregator(dup)
	assert.Error(t, err)

	missing := allOK()
	missing[2].Checker = nil
	_, err = NewAggregator(missing)
	assert.Error(t, err)
}
