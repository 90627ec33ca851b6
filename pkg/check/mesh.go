package check

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"node-pulse/pkg/model"
)

// PingResult is the summary of one probe burst.
type PingResult struct {
	LatencyMs float64
	LossPct   float64
}

// Pinger probes an address.
type Pinger func(ctx context.Context, target string) (PingResult, error)

// SystemPing uses the system ping binary and falls back to a TCP connect on
// fallbackPort when ping is missing or produced no summary.
func SystemPing(count int, fallbackPort int) Pinger {
	if count <= 0 {
		count = 3
	}
	return func(ctx context.Context, target string) (PingResult, error) {
		out, err := exec.CommandContext(ctx, "ping", "-c", strconv.Itoa(count), "-W", "1", target).CombinedOutput()
		if res, ok := parsePing(string(out)); ok {
			return res, nil
		}
		if ctx.Err() != nil {
			return PingResult{}, ctx.Err()
		}
		if fallbackPort <= 0 {
			if err == nil {
				err = fmt.Errorf("unparseable ping output")
			}
			return PingResult{}, err
		}
		start := time.Now()
		var d net.Dialer
		conn, errDial := d.DialContext(ctx, "tcp", net.JoinHostPort(target, strconv.Itoa(fallbackPort)))
		if errDial != nil {
			return PingResult{LossPct: 100}, errDial
		}
		_ = conn.Close()
		return PingResult{LatencyMs: float64(time.Since(start).Microseconds()) / 1000}, nil
	}
}

var (
	pingLossRe = regexp.MustCompile(`([0-9.]+)% packet loss`)
	pingRttRe  = regexp.MustCompile(`= ([0-9.]+)/([0-9.]+)/`)
)

// parsePing extracts loss and average RTT. ok is false when no loss summary
// was found.
func parsePing(s string) (PingResult, bool) {
	m := pingLossRe.FindStringSubmatch(s)
	if len(m) != 2 {
		return PingResult{}, false
	}
	loss, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return PingResult{}, false
	}
	res := PingResult{LossPct: loss}
	if r := pingRttRe.FindStringSubmatch(s); len(r) == 3 {
		if avg, err := strconv.ParseFloat(r[2], 64); err == nil {
			res.LatencyMs = avg
		}
	}
	return res, true
}

// MeshCheck probes the MPU5 mesh path to the node.
type MeshCheck struct {
	Ping Pinger
	// WarnLatency degrades an otherwise clean link; zero disables it.
	WarnLatency time.Duration
}

func (c MeshCheck) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	res, err := c.Ping(ctx, node.Address)
	switch {
	case err != nil && ctx.Err() != nil:
		return fail("Mesh radio probe timeout; no reply before deadline.")
	case err != nil:
		return fail("Mesh radio unreachable: " + strings.TrimSpace(err.Error()))
	case res.LossPct >= 100:
		return fail("Mesh radio unreachable; 100% packet loss.")
	case res.LossPct > 0:
		return warn(fmt.Sprintf("Mesh link degraded; %.0f%% packet loss.", res.LossPct))
	case c.WarnLatency > 0 && res.LatencyMs > float64(c.WarnLatency.Milliseconds()):
		return warn(fmt.Sprintf("Mesh link latency high (%.1f ms).", res.LatencyMs))
	}
	return ok(fmt.Sprintf("MPU5 mesh network link to %s stable (%.1f ms).", node.Name, res.LatencyMs))
}
