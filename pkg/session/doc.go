// Package session provides conversation-session state for CareSwarm.
//
// A session is one logical, resumable patient conversation: an opaque id, the
// append-only message history, the currently active handler, and the typed
// side state carried across handoffs. Persistence goes through an explicitly
// injected Store with pluggable backings: an in-memory map for tests and
// single-node deployments, and Redis for multi-node deployments.
package session
