package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefs() []*Definition {
	return []*Definition{
		{Name: Triage, Handoffs: []HandlerName{Appointment, Clinical, Billing}},
		{Name: Appointment, Handoffs: []HandlerName{Triage, Clinical, Billing}},
		{Name: Clinical, Handoffs: []HandlerName{Triage, Appointment, Billing}},
		{Name: Billing, Handoffs: []HandlerName{Triage, Clinical, Appointment}},
	}
}

func TestNewRoster(t *testing.T) {
	roster, err := NewRoster(testDefs())
	require.NoError(t, err)

	names := roster.Names()
	assert.Equal(t, []HandlerName{Triage, Appointment, Clinical, Billing}, names)

	d, err := roster.Get(Billing)
	require.NoError(t, err)
	assert.True(t, d.CanHandOff(Clinical))
	assert.False(t, d.CanHandOff(Billing))
}

func TestNewRosterValidation(t *testing.T) {
	tests := []struct {
		name string
		defs []*Definition
	}{
		{
			name: "empty roster",
			defs: nil,
		},
		{
			name: "unknown handler name",
			defs: []*Definition{{Name: "Radiology"}},
		},
		{
			name: "duplicate definition",
			defs: []*Definition{{Name: Triage}, {Name: Triage}},
		},
		{
			name: "self handoff",
			defs: []*Definition{{Name: Triage, Handoffs: []HandlerName{Triage}}},
		},
		{
			name: "handoff to unregistered handler",
			defs: []*Definition{{Name: Triage, Handoffs: []HandlerName{Billing}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoster(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestRosterEdges(t *testing.T) {
	roster, err := NewRoster(testDefs())
	require.NoError(t, err)

	edges := roster.Edges()
	assert.Len(t, edges, 12)
	assert.Contains(t, edges, HandoffEdge{From: Triage, To: Appointment})
	assert.NotContains(t, edges, HandoffEdge{From: Triage, To: Triage})
}

func TestHandoffToolNames(t *testing.T) {
	for _, n := range AllHandlers {
		tool := n.HandoffToolName()
		require.NotEmpty(t, tool)

		target, ok := HandlerForHandoffTool(tool)
		require.True(t, ok)
		assert.Equal(t, n, target)
	}

	_, ok := HandlerForHandoffTool("book_appointment")
	assert.False(t, ok)
}

func TestHandlerNameValid(t *testing.T) {
	assert.True(t, Triage.Valid())
	assert.False(t, HandlerName("").Valid())
	assert.False(t, HandlerName("triage").Valid())
}
