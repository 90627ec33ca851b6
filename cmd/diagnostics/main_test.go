package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-pulse/pkg/model"
)

func sampleSnapshot() model.NodeSnapshot {
	at := time.Date(2024, 3, 9, 8, 7, 6, 123456000, time.UTC)
	return model.NewSnapshot(model.Node{Name: "Node Alpha", Address: "192.168.10.2"}, at, model.Services{
		{Name: model.ServiceENodeB, CheckResult: model.CheckResult{Status: model.StatusOK, Details: "eNodeB up."}},
		{Name: model.CellService(1), CheckResult: model.CheckResult{Status: model.StatusWarn, Details: "Alarm raised."}},
	})
}

func TestFormatSnapshot(t *testing.T) {
	want := "Node: Node Alpha (192.168.10.2)\n" +
		"  Overall: WARN @ 2024-03-09T08:07:06.123456Z\n" +
		"  - eNodeB: OK - eNodeB up.\n" +
		"  - Cell 1: WARN - Alarm raised."
	assert.Equal(t, want, formatSnapshot(sampleSnapshot()))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report(&buf, "mock", []model.NodeSnapshot{sampleSnapshot()}, false))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Running mock diagnostics..."))
	assert.Contains(t, out, "JSON payload for first node:")
	assert.Contains(t, out, `"overall_status": "WARN"`)

	buf.Reset()
	require.NoError(t, report(&buf, "mock", []model.NodeSnapshot{sampleSnapshot()}, true))
	var decoded []model.NodeSnapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, model.StatusWarn, decoded[0].OverallStatus)

	buf.Reset()
	require.NoError(t, report(&buf, "live", nil, false))
	assert.Contains(t, buf.String(), "No nodes configured.")
}
