package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	consulapi "github.com/hashicorp/consul/api"

	"node-pulse/pkg/model"
)

// DefaultConsulPrefix is the KV folder holding one JSON node per key.
const DefaultConsulPrefix = "node-pulse/nodes/"

// Consul reads nodes from a Consul KV prefix. Each key holds {"name","ip"}.
type Consul struct {
	cli    *consulapi.Client
	prefix string
}

func NewConsul(addr, prefix string) (*Consul, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if prefix == "" {
		prefix = DefaultConsulPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Consul{cli: cli, prefix: prefix}, nil
}

func (c *Consul) Load(ctx context.Context) ([]model.Node, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	pairs, _, err := c.cli.KV().List(c.prefix, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.prefix, err)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	nodes := make([]model.Node, 0, len(pairs))
	for _, p := range pairs {
		// folder markers carry no value
		if p == nil || len(p.Value) == 0 || strings.HasSuffix(p.Key, "/") {
			continue
		}
		var n model.Node
		if err := json.Unmarshal(p.Value, &n); err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrInvalidNode, p.Key, err)
		}
		nodes = append(nodes, n)
	}
	return Validate(nodes)
}
