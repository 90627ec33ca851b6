package check

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"node-pulse/pkg/model"
)

// DeviceReader returns the state of a local WireGuard interface.
type DeviceReader func(name string) (*wgtypes.Device, error)

// OpenWireGuard opens a wgctrl client. The returned closer releases it.
func OpenWireGuard() (DeviceReader, io.Closer, error) {
	c, err := wgctrl.New()
	if err != nil {
		return nil, nil, fmt.Errorf("open wireguard control: %w", err)
	}
	return c.Device, c, nil
}

// SSHConfig builds public-key client settings for the VPN VM. Host keys are
// verified only when knownHostsFile is set.
func SSHConfig(user, keyFile, knownHostsFile string, timeout time.Duration) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	hostKeys := ssh.InsecureIgnoreHostKey()
	if knownHostsFile != "" {
		hostKeys, err = knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

// VPNCheck verifies the WireGuard tunnel towards the node (when an interface
// is configured) and that the VPN VM accepts connections on its SSH port.
type VPNCheck struct {
	Interface       string
	Device          DeviceReader
	MaxHandshakeAge time.Duration

	SSH     *ssh.ClientConfig
	SSHPort int

	Now func() time.Time
}

func (c VPNCheck) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	var degraded *model.CheckResult
	if c.Interface != "" && c.Device != nil {
		res := c.tunnel(ctx, node)
		if res.Status == model.StatusFail {
			return res
		}
		if res.Status == model.StatusWarn {
			degraded = &res
		}
	}
	if res := c.vm(ctx, node); res.Status != model.StatusOK || degraded == nil {
		return res
	}
	return *degraded
}

func (c VPNCheck) tunnel(ctx context.Context, node model.Node) model.CheckResult {
	dev, err := c.Device(c.Interface)
	if err != nil {
		return fail(fmt.Sprintf("Unable to read VPN interface %s: %v.", c.Interface, err))
	}
	ips, err := resolve(ctx, node.Address)
	if err != nil {
		return fail("Unable to resolve node address for VPN lookup.")
	}
	peer := findPeer(dev.Peers, ips)
	if peer == nil {
		return fail("No VPN tunnel peer covers the node address.")
	}
	if peer.LastHandshakeTime.IsZero() {
		return fail("VPN tunnel never completed a handshake.")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	maxAge := c.MaxHandshakeAge
	if maxAge <= 0 {
		maxAge = 3 * time.Minute
	}
	if age := now().Sub(peer.LastHandshakeTime); age > maxAge {
		return warn(fmt.Sprintf("VPN tunnel handshake stale (last %s ago).", age.Round(time.Second)))
	}
	return ok("VPN tunnel handshake current.")
}

func (c VPNCheck) vm(ctx context.Context, node model.Node) model.CheckResult {
	port := c.SSHPort
	if port <= 0 {
		port = 22
	}
	addr := net.JoinHostPort(node.Address, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return fail("VPN VM connection timeout.")
		}
		return fail("VPN VM unreachable; service offline due to connectivity loss.")
	}
	defer conn.Close()
	if c.SSH == nil {
		return ok(fmt.Sprintf("VPN VM for %s reachable.", node.Name))
	}
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		_ = conn.SetDeadline(deadline)
	}
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, c.SSH)
	if err != nil {
		return fail("VPN VM reachable but SSH authentication failed.")
	}
	_ = ssh.NewClient(sc, chans, reqs).Close()
	return ok(fmt.Sprintf("VPN VM for %s reachable and authenticated.", node.Name))
}

func resolve(ctx context.Context, address string) ([]net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.IP)
	}
	return out, nil
}

func findPeer(peers []wgtypes.Peer, ips []net.IP) *wgtypes.Peer {
	for i := range peers {
		for _, allowed := range peers[i].AllowedIPs {
			for _, ip := range ips {
				if allowed.Contains(ip) {
					return &peers[i]
				}
			}
		}
	}
	return nil
}
