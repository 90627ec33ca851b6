package check

import (
	"context"
	"fmt"
	"strings"

	"node-pulse/pkg/model"
)

type enodebStatus struct {
	Operational bool   `json:"operational"`
	S1Link      string `json:"s1_link"`
	Alarms      int    `json:"alarms"`
}

// ENodeBCheck reads the base-station state from the management API.
type ENodeBCheck struct {
	Client *MgmtClient
}

func (c ENodeBCheck) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	var st enodebStatus
	if err := c.Client.GetJSON(ctx, node, "/status/enodeb", &st); err != nil {
		return mgmtFailure(err)
	}
	switch {
	case !st.Operational:
		return fail("Critical fault detected; eNodeB not operational.")
	case !strings.EqualFold(st.S1Link, "up"):
		return warn("S1 link to the core is down; eNodeB isolated from the EPC.")
	case st.Alarms > 0:
		return warn(fmt.Sprintf("eNodeB operational with %d active alarm(s); monitor conditions.", st.Alarms))
	}
	return ok(fmt.Sprintf("eNodeB for %s responding normally.", node.Name))
}

type broadcastStatus struct {
	PLMN     string `json:"plmn"`
	MIBValid bool   `json:"mib_valid"`
	SIBValid bool   `json:"sib_valid"`
}

// BroadcastCheck validates the SIB/MIB blocks and the advertised PLMN.
type BroadcastCheck struct {
	Client       *MgmtClient
	ExpectedPLMN string
}

func (c BroadcastCheck) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	var st broadcastStatus
	if err := c.Client.GetJSON(ctx, node, "/status/broadcast", &st); err != nil {
		return mgmtFailure(err)
	}
	switch {
	case !st.MIBValid && !st.SIBValid:
		return fail("MIB and SIB both invalid; cell broadcast unusable.")
	case !st.MIBValid:
		return warn("MIB failed validation; potential configuration drift identified.")
	case !st.SIBValid:
		return warn("SIB failed validation; potential configuration drift identified.")
	case c.ExpectedPLMN != "" && st.PLMN != c.ExpectedPLMN:
		return warn(fmt.Sprintf("Broadcast PLMN %q does not match expected %q.", st.PLMN, c.ExpectedPLMN))
	}
	return ok("SIB/MIB/PLMN parameters validated.")
}

type cellStatus struct {
	Transmitting bool     `json:"transmitting"`
	Alarms       []string `json:"alarms"`
}

// CellCheck reports the transmit state of one cell.
type CellCheck struct {
	Client *MgmtClient
	CellID int
}

func (c CellCheck) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	var st cellStatus
	if err := c.Client.GetJSON(ctx, node, fmt.Sprintf("/status/cells/%d", c.CellID), &st); err != nil {
		return mgmtFailure(err)
	}
	switch {
	case !st.Transmitting:
		return fail("Cell not transmitting; radio locked or faulted.")
	case len(st.Alarms) > 0:
		return warn("Cell transmitting with alarms: " + strings.Join(st.Alarms, ", ") + ".")
	}
	return ok(fmt.Sprintf("Cell %d transmitting without alarms.", c.CellID))
}
