package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ServiceName labels the check that produced a result.
type ServiceName string

const (
	ServiceENodeB             ServiceName = "eNodeB"
	ServiceTransmitParameters ServiceName = "Transmit Parameters"
	ServiceMeshRadio          ServiceName = "Mesh Radio (MPU5)"
	ServiceVPNVM              ServiceName = "VPN VM"
)

// CellService names the transmit-state check of one cell.
func CellService(cellID int) ServiceName {
	return ServiceName(fmt.Sprintf("Cell %d", cellID))
}

// TimestampLayout is the wire form of checked_at: UTC, microseconds, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status  Status `json:"status"`
	Details string `json:"details"`
}

// ServiceResult pairs a result with the service that produced it.
type ServiceResult struct {
	Name ServiceName
	CheckResult
}

// Services keeps results in declaration order. It encodes as a JSON object whose
// keys follow that order.
type Services []ServiceResult

// Get returns the result recorded for name.
func (s Services) Get(name ServiceName) (CheckResult, bool) {
	for _, r := range s {
		if r.Name == name {
			return r.CheckResult, true
		}
	}
	return CheckResult{}, false
}

// Names lists service names in order.
func (s Services) Names() []ServiceName {
	out := make([]ServiceName, 0, len(s))
	for _, r := range s {
		out = append(out, r.Name)
	}
	return out
}

func (s Services) statuses() []Status {
	out := make([]Status, 0, len(s))
	for _, r := range s {
		out = append(out, r.Status)
	}
	return out
}

func (s Services) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(r.Name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.CheckResult)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", r.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Services) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("services: expected object")
	}
	out := Services{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("services: expected string key")
		}
		var res CheckResult
		if err := dec.Decode(&res); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		out = append(out, ServiceResult{Name: ServiceName(name), CheckResult: res})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// NodeSnapshot is the complete, timestamped result set for one node.
type NodeSnapshot struct {
	Node          Node
	CheckedAt     time.Time
	OverallStatus Status
	Services      Services
}

// NewSnapshot builds a snapshot and derives its overall status from services.
func NewSnapshot(node Node, checkedAt time.Time, services Services) NodeSnapshot {
	cp := make(Services, len(services))
	copy(cp, services)
	return NodeSnapshot{
		Node:          node,
		CheckedAt:     checkedAt.UTC(),
		OverallStatus: Reduce(cp.statuses()...),
		Services:      cp,
	}
}

// NodeSummary is the per-node entry of the fleet listing.
type NodeSummary struct {
	Name          string `json:"name"`
	IP            string `json:"ip"`
	OverallStatus Status `json:"overall_status"`
	CheckedAt     string `json:"checked_at"`
}

// Summary drops the per-service detail.
func (s NodeSnapshot) Summary() NodeSummary {
	return NodeSummary{
		Name:          s.Node.Name,
		IP:            s.Node.Address,
		OverallStatus: s.OverallStatus,
		CheckedAt:     FormatTimestamp(s.CheckedAt),
	}
}

type snapshotWire struct {
	Name          string   `json:"name"`
	IP            string   `json:"ip"`
	CheckedAt     string   `json:"checked_at"`
	OverallStatus Status   `json:"overall_status"`
	Services      Services `json:"services"`
}

func (s NodeSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotWire{
		Name:          s.Node.Name,
		IP:            s.Node.Address,
		CheckedAt:     FormatTimestamp(s.CheckedAt),
		OverallStatus: s.OverallStatus,
		Services:      s.Services,
	})
}

func (s *NodeSnapshot) UnmarshalJSON(b []byte) error {
	var w snapshotWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.CheckedAt)
	if err != nil {
		return fmt.Errorf("checked_at: %w", err)
	}
	// overall_status is derived, never trusted from the wire
	*s = NewSnapshot(Node{Name: w.Name, Address: w.IP}, ts, w.Services)
	return nil
}

// FormatTimestamp renders t as ISO-8601 UTC with a trailing Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
