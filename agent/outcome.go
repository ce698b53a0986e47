package agent

// OutcomeKind discriminates the result of a single handler invocation.
type OutcomeKind int

const (
	// OutcomeReply means the handler produced a final textual reply and the
	// turn loop may terminate.
	OutcomeReply OutcomeKind = iota

	// OutcomeToolCalls means the handler requested one or more domain tool
	// invocations and must be re-invoked with their results.
	OutcomeToolCalls

	// OutcomeHandoff means the handler transferred control to another
	// handler. Any free text co-emitted with the handoff is not surfaced to
	// the user; the new handler produces the next reply.
	OutcomeHandoff
)

// Outcome is the tagged union returned by one handler invocation.
// Exactly one of the payload fields is meaningful for a given Kind.
type Outcome struct {
	Kind OutcomeKind

	// Reply is the user-visible text for OutcomeReply.
	Reply string

	// ToolCalls are the requested invocations for OutcomeToolCalls.
	ToolCalls []ToolCall

	// Target is the receiving handler for OutcomeHandoff.
	Target HandlerName

	// HandoffCall is the tool call that signaled the handoff, kept so the
	// router can append its result to history before re-invoking.
	HandoffCall ToolCall

	// Suppressed holds free text the handler co-emitted with a handoff.
	// It is recorded for diagnostics but never shown to the user.
	Suppressed string
}

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReply:
		return "reply"
	case OutcomeToolCalls:
		return "tool_calls"
	case OutcomeHandoff:
		return "handoff"
	}
	return "unknown"
}
