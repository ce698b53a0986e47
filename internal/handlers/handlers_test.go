package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careswarm/careswarm/agent"
	"github.com/careswarm/careswarm/internal/tools"
)

func TestRosterIsValid(t *testing.T) {
	roster, err := NewRoster()
	require.NoError(t, err)
	assert.Len(t, roster.Names(), 4)
	// Fully connected: each handler reaches the other three.
	assert.Len(t, roster.Edges(), 12)
}

func TestEveryToolBindingResolves(t *testing.T) {
	// Every tool a handler names must exist in the registry, otherwise the
	// handler would fail mid-conversation.
	r := tools.NewRegistry()
	stub := func(context.Context, tools.Invocation) (string, error) { return "", nil }
	for _, name := range []string{
		"verify_user", "register_user", "search_doctors", "check_availability",
		"book_appointment", "cancel_appointment", "get_patient_records", "get_billing_info",
	} {
		require.NoError(t, r.Register(tools.Tool{Name: name, Func: stub}))
	}
	for _, def := range Definitions() {
		_, err := r.Schemas(def.Tools)
		assert.NoError(t, err, "handler %s", def.Name)
	}
}

func TestHandlerShape(t *testing.T) {
	for _, def := range Definitions() {
		assert.True(t, def.Name.Valid())
		assert.NotEmpty(t, def.Instructions, "handler %s", def.Name)
		assert.NotEmpty(t, def.Color, "handler %s", def.Name)
		assert.NotContains(t, def.Handoffs, def.Name, "handler %s must not hand off to itself", def.Name)
	}
}

func TestTriageIsEntryHandler(t *testing.T) {
	roster, err := NewRoster()
	require.NoError(t, err)
	def, err := roster.Get(agent.Triage)
	require.NoError(t, err)
	assert.Contains(t, def.Tools, "verify_user")
	assert.Contains(t, def.Tools, "register_user")
}
