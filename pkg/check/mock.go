package check

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"node-pulse/pkg/model"
)

var mockDetails = map[model.Status][]string{
	model.StatusOK: {
		"Operating within expected parameters.",
		"No issues detected.",
		"Systems nominal.",
	},
	model.StatusWarn: {
		"Minor inconsistencies detected; monitor conditions.",
		"Performance degradation observed; investigate soon.",
		"Potential configuration drift identified.",
	},
	model.StatusFail: {
		"Critical fault detected; service unavailable.",
		"Hardware fault reported; immediate action required.",
		"Service offline due to connectivity loss.",
	},
}

// Mock produces random outcomes for demos without hardware. OK results carry
// a node or cell specific message.
type Mock struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock seeds the generator; equal seeds give equal sequences.
func NewMock(seed uint64) *Mock {
	return &Mock{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (m *Mock) roll() model.CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := model.Status(m.rng.IntN(3) + 1)
	pool := mockDetails[status]
	return model.CheckResult{Status: status, Details: pool[m.rng.IntN(len(pool))]}
}

func (m *Mock) checker(okDetails func(model.Node) string) Checker {
	return CheckFunc(func(_ context.Context, node model.Node) model.CheckResult {
		res := m.roll()
		if res.Status == model.StatusOK {
			res.Details = okDetails(node)
		}
		return res
	})
}

func (m *Mock) ENodeB() Checker {
	return m.checker(func(n model.Node) string {
		return fmt.Sprintf("eNodeB for %s responding normally.", n.Name)
	})
}

func (m *Mock) TransmitParameters() Checker {
	return m.checker(func(model.Node) string { return "SIB/MIB/PLMN parameters validated." })
}

func (m *Mock) MeshRadio() Checker {
	return m.checker(func(model.Node) string { return "MPU5 mesh network link stable." })
}

func (m *Mock) VPNVM() Checker {
	return m.checker(func(model.Node) string { return "VPN VM reachable and authenticated." })
}

func (m *Mock) Cell(cellID int) Checker {
	return m.checker(func(model.Node) string {
		return fmt.Sprintf("Cell %d transmitting without alarms.", cellID)
	})
}
