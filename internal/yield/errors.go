package yield

import (
	"fmt"
	"strings"
)

type ParameterGroup string

const (
	GroupLocation ParameterGroup = "location"
	GroupPVSystem ParameterGroup = "pv-system"
)

// MissingParameterError reports an absent or out-of-range input.
type MissingParameterError struct {
	Group  ParameterGroup
	Fields []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing or invalid %s parameters: %s", e.Group, strings.Join(e.Fields, ", "))
}

// NoValidSystemsError means no sub-array had a positive capacity.
type NoValidSystemsError struct {
	Submitted int
}

func (e *NoValidSystemsError) Error() string {
	return fmt.Sprintf("no valid PV systems: %d submitted, none with capacity > 0", e.Submitted)
}

// InvalidModuleSpecError rejects module values that would turn into
// Inf or NaN further down the pipeline.
type InvalidModuleSpecError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidModuleSpecError) Error() string {
	return fmt.Sprintf("invalid module spec %s=%v: %s", e.Field, e.Value, e.Reason)
}
