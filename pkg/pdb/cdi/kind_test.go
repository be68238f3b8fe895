package cdi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNames(t *testing.T) {
	for _, k := range Kinds() {
		require.True(t, k.Known())
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.Len(t, Kinds(), 10)
	assert.Equal(t, "Unknown(0x0a)", RecordKind(10).String())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    RecordKind
		wantErr bool
	}{
		{"DynamicLocals", DynamicLocals, false},
		{"dynamiclocals", DynamicLocals, false},
		{"6", EditAndContinueLocalSlotMap, false},
		{"0x09", EditAndContinueStateMachineStateMap, false},
		{"10", 0, true},
		{"256", 0, true},
		{"Locals", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
