package model

import (
	"encoding/json"
	"fmt"
)

// Status is a check severity. Values are ordered OK < WARN < FAIL.
type Status int

const (
	StatusOK Status = iota + 1
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Valid reports whether s is one of the three known severities.
func (s Status) Valid() bool {
	return s >= StatusOK && s <= StatusFail
}

// ParseStatus converts the wire form of a status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "OK":
		return StatusOK, nil
	case "WARN":
		return StatusWarn, nil
	case "FAIL":
		return StatusFail, nil
	}
	return 0, fmt.Errorf("unknown status %q", v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot encode invalid status %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Reduce folds statuses into the most severe one. FAIL dominates WARN, WARN
// dominates OK, and an empty input is OK. Unknown values count as FAIL.
func Reduce(statuses ...Status) Status {
	out := StatusOK
	for _, s := range statuses {
		if !s.Valid() {
			s = StatusFail
		}
		if s > out {
			out = s
		}
	}
	return out
}
