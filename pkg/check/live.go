package check

import "time"

// LiveOptions configures the real backends.
type LiveOptions struct {
	Mgmt         MgmtOptions
	ExpectedPLMN string

	Ping            Pinger
	MeshWarnLatency time.Duration
	VPN             VPNCheck
}

// Live probes real hardware: the node management API for radio state, ICMP for
// the mesh path and WireGuard plus SSH for the VPN VM.
type Live struct {
	mgmt *MgmtClient
	opts LiveOptions
}

func NewLive(opts LiveOptions) *Live {
	if opts.Ping == nil {
		opts.Ping = SystemPing(3, 0)
	}
	return &Live{mgmt: NewMgmtClient(opts.Mgmt), opts: opts}
}

func (l *Live) ENodeB() Checker { return ENodeBCheck{Client: l.mgmt} }

func (l *Live) TransmitParameters() Checker {
	return BroadcastCheck{Client: l.mgmt, ExpectedPLMN: l.opts.ExpectedPLMN}
}

func (l *Live) MeshRadio() Checker {
	return MeshCheck{Ping: l.opts.Ping, WarnLatency: l.opts.MeshWarnLatency}
}

func (l *Live) VPNVM() Checker { return l.opts.VPN }

func (l *Live) Cell(cellID int) Checker { return CellCheck{Client: l.mgmt, CellID: cellID} }
