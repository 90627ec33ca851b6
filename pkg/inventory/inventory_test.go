package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-pulse/pkg/model"
)

func TestBuiltin(t *testing.T) {
	nodes, err := Static(Builtin()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, model.Node{Name: "Node Alpha", Address: "192.168.10.2"}, nodes[0])
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    int
		invalid bool
	}{
		{name: "object", input: `{"nodes":[{"name":"A","ip":"10.0.0.1"},{"name":"B","ip":"b.example"}]}`, want: 2},
		{name: "array", input: ` [{"name":"A","ip":"10.0.0.1"}]`, want: 1},
		{name: "empty list", input: `{"nodes":[]}`, want: 0},
		{name: "missing address", input: `[{"name":"A"}]`, invalid: true},
		{name: "blank name", input: `[{"name":"  ","ip":"10.0.0.1"}]`, invalid: true},
		{name: "duplicate", input: `[{"name":"Node A","ip":"10.0.0.1"},{"name":"node a","ip":"10.0.0.2"}]`, invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nodes, err := Decode(strings.NewReader(tc.input))
			if tc.invalid {
				assert.ErrorIs(t, err, ErrInvalidNode)
				return
			}
			require.NoError(t, err)
			assert.Len(t, nodes, tc.want)
		})
	}

	_, err := Decode(strings.NewReader("not json"))
	assert.Error(t, err)
	_, err = Decode(strings.NewReader(""))
	assert.Error(t, err)
}

func TestValidateTrims(t *testing.T) {
	nodes, err := Validate([]model.Node{{Name: " Node Alpha ", Address: " 10.0.0.1 "}})
	require.NoError(t, err)
	assert.Equal(t, "Node Alpha", nodes[0].Name)
	assert.Equal(t, "10.0.0.1", nodes[0].Address)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"name":"Site 1","ip":"10.1.0.2"}]}`), 0o600))

	src, err := New(Options{Source: "file", File: path})
	require.NoError(t, err)
	nodes, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Node{{Name: "Site 1", Address: "10.1.0.2"}}, nodes)

	_, err = File{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	src, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Static(nil), src)

	_, err = New(Options{Source: "file"})
	assert.Error(t, err)
	_, err = New(Options{Source: "etcd"})
	assert.Error(t, err)
}

func fakeConsul(t *testing.T, pairs consulapi.KVPairs) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/kv/fleet/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Consul-Index", "7")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")
		_ = json.NewEncoder(w).Encode(pairs)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func nodeValue(t *testing.T, n model.Node) []byte {
	t.Helper()
	b, err := json.Marshal(n)
	require.NoError(t, err)
	return b
}

func TestConsul(t *testing.T) {
	srv := fakeConsul(t, consulapi.KVPairs{
		{Key: "fleet/", Value: nil},
		{Key: "fleet/charlie", Value: nodeValue(t, model.Node{Name: "Node Charlie", Address: "192.168.30.2"})},
		{Key: "fleet/alpha", Value: nodeValue(t, model.Node{Name: "Node Alpha", Address: "192.168.10.2"})},
	})

	src, err := New(Options{Source: "consul", ConsulAddr: strings.TrimPrefix(srv.URL, "http://"), ConsulPrefix: "fleet"})
	require.NoError(t, err)
	nodes, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Node Alpha", nodes[0].Name)
	assert.Equal(t, "Node Charlie", nodes[1].Name)
}

func TestConsulRejectsBadEntry(t *testing.T) {
	srv := fakeConsul(t, consulapi.KVPairs{
		{Key: "fleet/broken", Value: []byte("{")},
	})
	src, err := NewConsul(strings.TrimPrefix(srv.URL, "http://"), "fleet/")
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidNode)
}
