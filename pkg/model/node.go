package model

import (
	"fmt"
	"strings"
)

// Node identifies a monitored network element. The address is serialized as "ip"
// but may also carry a resolvable hostname.
type Node struct {
	Name    string `json:"name"`
	Address string `json:"ip"`
}

// Validate reports whether the node record is usable.
func (n Node) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("node name is required")
	}
	if strings.TrimSpace(n.Address) == "" {
		return fmt.Errorf("node %q: address is required", n.Name)
	}
	if strings.ContainsAny(n.Address, " /\t") {
		return fmt.Errorf("node %q: invalid address %q", n.Name, n.Address)
	}
	return nil
}

// Key is the case-insensitive identity used for lookups and caching.
func (n Node) Key() string {
	return strings.ToLower(n.Name)
}

func (n Node) String() string {
	return n.Name + " (" + n.Address + ")"
}
