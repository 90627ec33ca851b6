// Package inventory resolves the static node list the dashboard monitors.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"node-pulse/pkg/model"
)

// ErrInvalidNode marks an inventory entry that cannot be monitored.
var ErrInvalidNode = errors.New("invalid node")

// Source loads the node list once at startup.
type Source interface {
	Load(ctx context.Context) ([]model.Node, error)
}

// Builtin is the demo inventory used when no other source is configured.
func Builtin() []model.Node {
	return []model.Node{
		{Name: "Node Alpha", Address: "192.168.10.2"},
		{Name: "Node Bravo", Address: "192.168.20.2"},
		{Name: "Node Charlie", Address: "192.168.30.2"},
	}
}

// Static serves a fixed list.
type Static []model.Node

func (s Static) Load(context.Context) ([]model.Node, error) {
	return Validate(append([]model.Node(nil), s...))
}

// File reads a JSON inventory from disk.
type File struct {
	Path string
}

func (f File) Load(context.Context) ([]model.Node, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer fh.Close()
	nodes, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return nodes, nil
}

// Decode parses either {"nodes": [...]} or a bare array of nodes and validates
// the result.
func Decode(r io.Reader) ([]model.Node, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var nodes []model.Node
	switch {
	case len(raw) == 0:
		return nil, fmt.Errorf("empty inventory")
	case raw[0] == '[':
		err = json.Unmarshal(raw, &nodes)
	default:
		var doc struct {
			Nodes []model.Node `json:"nodes"`
		}
		err = json.Unmarshal(raw, &doc)
		nodes = doc.Nodes
	}
	if err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return Validate(nodes)
}

// Validate trims names and addresses and rejects invalid or duplicate
// entries. Names are compared case-insensitively.
func Validate(nodes []model.Node) ([]model.Node, error) {
	seen := make(map[string]string, len(nodes))
	out := make([]model.Node, 0, len(nodes))
	for i, n := range nodes {
		n.Name = strings.TrimSpace(n.Name)
		n.Address = strings.TrimSpace(n.Address)
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidNode, i, err)
		}
		if prev, dup := seen[n.Key()]; dup {
			return nil, fmt.Errorf("%w: entry %d: name %q duplicates %q", ErrInvalidNode, i, n.Name, prev)
		}
		seen[n.Key()] = n.Name
		out = append(out, n)
	}
	return out, nil
}

// Options selects and configures a Source.
type Options struct {
	Source       string // builtin | file | consul
	File         string
	ConsulAddr   string
	ConsulPrefix string
}

// New builds the Source named by opts.
func New(opts Options) (Source, error) {
	switch strings.ToLower(opts.Source) {
	case "", "builtin":
		return Static(Builtin()), nil
	case "file":
		if opts.File == "" {
			return nil, fmt.Errorf("file inventory requires a path")
		}
		return File{Path: opts.File}, nil
	case "consul":
		return NewConsul(opts.ConsulAddr, opts.ConsulPrefix)
	}
	return nil, fmt.Errorf("unsupported inventory source: %s", opts.Source)
}
