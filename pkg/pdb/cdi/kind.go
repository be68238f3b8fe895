package cdi

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordKind identifies the meaning of a custom debug information record.
// Any byte is legal on the wire; only the constants below are known.
type RecordKind uint8

// Known record kinds
const (
	UsingGroups                         RecordKind = 0
	ForwardMethodInfo                   RecordKind = 1
	ForwardModuleInfo                   RecordKind = 2
	StateMachineHoistedLocalScopes      RecordKind = 3
	StateMachineTypeName                RecordKind = 4
	DynamicLocals                       RecordKind = 5
	EditAndContinueLocalSlotMap         RecordKind = 6
	EditAndContinueLambdaMap            RecordKind = 7
	TupleElementNames                   RecordKind = 8
	EditAndContinueStateMachineStateMap RecordKind = 9
)

var kindNames = [...]string{
	UsingGroups:                         "UsingGroups",
	ForwardMethodInfo:                   "ForwardMethodInfo",
	ForwardModuleInfo:                   "ForwardModuleInfo",
	StateMachineHoistedLocalScopes:      "StateMachineHoistedLocalScopes",
	StateMachineTypeName:                "StateMachineTypeName",
	DynamicLocals:                       "DynamicLocals",
	EditAndContinueLocalSlotMap:         "EditAndContinueLocalSlotMap",
	EditAndContinueLambdaMap:            "EditAndContinueLambdaMap",
	TupleElementNames:                   "TupleElementNames",
	EditAndContinueStateMachineStateMap: "EditAndContinueStateMachineStateMap",
}

// Known reports whether k is one of the enumerated kinds.
func (k RecordKind) Known() bool {
	return int(k) < len(kindNames)
}

// String returns the kind name, or "Unknown(0xNN)" for unrecognized bytes.
func (k RecordKind) String() string {
	if k.Known() {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(k))
}

// Kinds returns all known kinds in wire order.
func Kinds() []RecordKind {
	kinds := make([]RecordKind, len(kindNames))
	for i := range kindNames {
		kinds[i] = RecordKind(i)
	}
	return kinds
}

// ParseKind resolves a kind from its name (case-insensitive) or its
// decimal/hex wire value. Unknown values are rejected.
func ParseKind(s string) (RecordKind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return RecordKind(i), nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown record kind %q", s)
	}
	k := RecordKind(v)
	if !k.Known() {
		return 0, fmt.Errorf("unknown record kind %q", s)
	}
	return k, nil
}
