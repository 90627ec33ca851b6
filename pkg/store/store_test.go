package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-pulse/pkg/model"
)

func snapshot(name string) model.NodeSnapshot {
	return model.NewSnapshot(
		model.Node{Name: name, Address: "192.168.10.2"},
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		model.Services{
			{Name: model.ServiceENodeB, CheckResult: model.CheckResult{Status: model.StatusOK, Details: "eNodeB for " + name + " responding normally."}},
			{Name: model.ServiceVPNVM, CheckResult: model.CheckResult{Status: model.StatusWarn, Details: "VPN tunnel handshake stale."}},
		},
	)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "node alpha")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "node alpha", snapshot("Node Alpha"), 10*time.Second))
	got, ok, err := m.Get(ctx, "node alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot("Node Alpha"), got)

	now = now.Add(10 * time.Second)
	_, ok, _ = m.Get(ctx, "node alpha")
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "node bravo", snapshot("Node Bravo"), time.Second))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreZeroTTL(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Put(context.Background(), "k", snapshot("k"), 0))
	assert.Equal(t, 0, m.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedisStore(client, "")
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "node alpha")
	require.NoError(t, err)
	assert.False(t, ok)

	want := snapshot("Node Alpha")
	require.NoError(t, r.Put(ctx, "node alpha", want, 5*time.Second))
	assert.True(t, mr.Exists(defaultRedisPrefix+"node alpha"))

	got, ok, err := r.Get(ctx, "node alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Node, got.Node)
	assert.Equal(t, want.Services, got.Services)
	assert.Equal(t, model.StatusWarn, got.OverallStatus)
	assert.True(t, want.CheckedAt.Equal(got.CheckedAt))

	mr.FastForward(6 * time.Second)
	_, ok, err = r.Get(ctx, "node alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("pulse:bad", "not json"))

	_, ok, err := NewRedisStore(client, "pulse:").Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := DialRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = client.Close()
}

func TestNop(t *testing.T) {
	var s SnapshotStore = Nop{}
	require.NoError(t, s.Put(context.Background(), "k", snapshot("k"), time.Minute))
	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
