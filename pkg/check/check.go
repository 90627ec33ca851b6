// Package check holds the per-node probes. Every probe resolves to a
// model.CheckResult; unreachable or misbehaving backends become FAIL results
// rather than errors.
package check

import (
	"context"

	"node-pulse/pkg/model"
)

// Checker evaluates one subsystem of a node.
type Checker interface {
	Evaluate(ctx context.Context, node model.Node) model.CheckResult
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context, node model.Node) model.CheckResult

func (f CheckFunc) Evaluate(ctx context.Context, node model.Node) model.CheckResult {
	return f(ctx, node)
}

// Service binds a checker to the name its result is reported under.
type Service struct {
	Name    model.ServiceName
	Checker Checker
}

// Probes builds the checkers of one backend family.
type Probes interface {
	ENodeB() Checker
	TransmitParameters() Checker
	MeshRadio() Checker
	VPNVM() Checker
	Cell(cellID int) Checker
}

// Cells are the cell ids probed on every node.
var Cells = []int{1, 2}

// Services returns the standard service set in display order.
func Services(p Probes) []Service {
	out := []Service{
		{Name: model.ServiceENodeB, Checker: p.ENodeB()},
		{Name: model.ServiceTransmitParameters, Checker: p.TransmitParameters()},
		{Name: model.ServiceMeshRadio, Checker: p.MeshRadio()},
		{Name: model.ServiceVPNVM, Checker: p.VPNVM()},
	}
	for _, id := range Cells {
		out = append(out, Service{Name: model.CellService(id), Checker: p.Cell(id)})
	}
	return out
}

// Fixed always reports the same result.
func Fixed(status model.Status, details string) Checker {
	return CheckFunc(func(context.Context, model.Node) model.CheckResult {
		return model.CheckResult{Status: status, Details: details}
	})
}

func ok(details string) model.CheckResult {
	return model.CheckResult{Status: model.StatusOK, Details: details}
}

func warn(details string) model.CheckResult {
	return model.CheckResult{Status: model.StatusWarn, Details: details}
}

func fail(details string) model.CheckResult {
	return model.CheckResult{Status: model.StatusFail, Details: details}
}
