package router

import (
	"time"

	"github.com/careswarm/careswarm/agent"
)

// EventKind identifies a lifecycle event emitted during a turn.
type EventKind string

const (
	// EventHandlerSwitched fires when the active handler changes, before
	// the new handler produces anything.
	EventHandlerSwitched EventKind = "handler_switched"

	// EventToolStarted fires when a tool call begins executing.
	EventToolStarted EventKind = "tool_started"

	// EventToolFinished fires when a tool call returns, success or error.
	EventToolFinished EventKind = "tool_finished"

	// EventTokenProduced carries generated reply text.
	EventTokenProduced EventKind = "token_produced"

	// EventTurnCompleted is the terminal success event; Content holds the
	// final reply.
	EventTurnCompleted EventKind = "turn_completed"

	// EventTurnFailed is the terminal failure event; Err holds the cause.
	EventTurnFailed EventKind = "turn_failed"
)

// Event is one entry in a turn's lifecycle stream.
type Event struct {
	Kind      EventKind         `json:"kind"`
	SessionID string            `json:"sessionId"`
	Handler   agent.HandlerName `json:"handler,omitempty"`
	From      agent.HandlerName `json:"from,omitempty"`
	To        agent.HandlerName `json:"to,omitempty"`
	Tool      string            `json:"tool,omitempty"`
	CallID    string            `json:"callId,omitempty"`
	Content   string            `json:"content,omitempty"`
	Err       string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Terminal reports whether the event ends the turn's stream.
func (e Event) Terminal() bool {
	return e.Kind == EventTurnCompleted || e.Kind == EventTurnFailed
}
