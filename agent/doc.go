// Package agent defines the static conversational handler model for CareSwarm.
//
// A handler is a named conversational role (Triage, Appointment, Clinical,
// Billing) bound to instruction text, a tool subset, and a set of permitted
// handoff targets. Handler definitions are constructed once at process start,
// validated as a graph, and shared read-only across all sessions.
//
// The package also defines the message format exchanged between the router,
// the model provider, and the tool layer, and the Outcome tagged union that a
// single handler invocation resolves to.
package agent
