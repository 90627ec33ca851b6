package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	cases := []struct {
		name string
		in   []Status
		want Status
	}{
		{"empty", nil, StatusOK},
		{"all ok", []Status{StatusOK, StatusOK, StatusOK}, StatusOK},
		{"single warn", []Status{StatusOK, StatusWarn, StatusOK}, StatusWarn},
		{"many warn", []Status{StatusWarn, StatusWarn}, StatusWarn},
		{"fail over warn", []Status{StatusWarn, StatusFail, StatusOK}, StatusFail},
		{"fail first", []Status{StatusFail, StatusOK, StatusOK}, StatusFail},
		{"only fail", []Status{StatusFail}, StatusFail},
		{"invalid counts as fail", []Status{StatusOK, Status(0)}, StatusFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Reduce(tc.in...))
		})
	}
}

// Every multiset of six statuses is checked under every rotation.
func TestReduceTotalAndOrderIndependent(t *testing.T) {
	all := []Status{StatusOK, StatusWarn, StatusFail}
	set := make([]Status, 6)
	var walk func(i int)
	walk = func(i int) {
		if i == len(set) {
			want := expected(set)
			for r := 0; r < len(set); r++ {
				rotated := append(append([]Status{}, set[r:]...), set[:r]...)
				require.Equal(t, want, Reduce(rotated...), "input %v", rotated)
				reversed := make([]Status, len(rotated))
				for k := range rotated {
					reversed[len(rotated)-1-k] = rotated[k]
				}
				require.Equal(t, want, Reduce(reversed...), "input %v", reversed)
			}
			return
		}
		for _, s := range all {
			set[i] = s
			walk(i + 1)
		}
	}
	walk(0)
}

func expected(in []Status) Status {
	hasWarn := false
	for _, s := range in {
		if s == StatusFail {
			return StatusFail
		}
		if s == StatusWarn {
			hasWarn = true
		}
	}
	if hasWarn {
		return StatusWarn
	}
	return StatusOK
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusWarn)
	require.NoError(t, err)
	assert.JSONEq(t, `"WARN"`, string(b))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"FAIL"`), &s))
	assert.Equal(t, StatusFail, s)

	assert.Error(t, json.Unmarshal([]byte(`"DEGRADED"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`"ok"`), &s))

	_, err = json.Marshal(Status(0))
	assert.Error(t, err)
}
