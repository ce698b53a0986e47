package agent

import (
	"fmt"
)

// HandlerName identifies one of the four conversational handlers.
type HandlerName string

const (
	Triage      HandlerName = "Triage"
	Appointment HandlerName = "Appointment"
	Clinical    HandlerName = "Clinical"
	Billing     HandlerName = "Billing"
)

// AllHandlers lists every valid handler name in presentation order.
var AllHandlers = []HandlerName{Triage, Appointment, Clinical, Billing}

// Valid reports whether n is one of the enumerated handler names.
func (n HandlerName) Valid() bool {
	switch n {
	case Triage, Appointment, Clinical, Billing:
		return true
	}
	return false
}

// HandoffToolName returns the name of the handoff tool targeting n,
// e.g. "to_appointment".
func (n HandlerName) HandoffToolName() string {
	switch n {
	case Triage:
		return "to_triage"
	case Appointment:
		return "to_appointment"
	case Clinical:
		return "to_clinical"
	case Billing:
		return "to_billing"
	}
	return ""
}

// HandlerForHandoffTool maps a handoff tool name back to its target handler.
// Returns false if the name is not a handoff tool.
func HandlerForHandoffTool(tool string) (HandlerName, bool) {
	for _, n := range AllHandlers {
		if n.HandoffToolName() == tool {
			return n, true
		}
	}
	return "", false
}

// Definition binds a handler name to its instructions, tool subset, and
// permitted handoff targets. Definitions are immutable after construction
// and shared read-only across sessions.
type Definition struct {
	// Name is the handler identity, one of the four enumerated names.
	Name HandlerName

	// Role is a short human-readable description used by the topology endpoint.
	Role string

	// Color is the presentation color for the topology endpoint.
	Color string

	// Instructions is the system prompt given to the model for this handler.
	Instructions string

	// Tools lists the names of domain tools this handler may invoke.
	// Handoff tools are derived from Handoffs, not listed here.
	Tools []string

	// Handoffs lists the handlers this one may transfer control to.
	Handoffs []HandlerName
}

// CanHandOff reports whether the definition permits a handoff to target.
func (d *Definition) CanHandOff(target HandlerName) bool {
	for _, h := range d.Handoffs {
		if h == target {
			return true
		}
	}
	return false
}

// Roster is the validated, immutable set of handler definitions.
type Roster struct {
	defs map[HandlerName]*Definition
}

// NewRoster validates the handler graph and returns an immutable roster.
// Validation fails fast on duplicate names, unknown names, self-handoffs,
// and handoff targets that are not part of the roster. A configuration
// defect here must never survive to runtime.
func NewRoster(defs []*Definition) (*Roster, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("roster requires at least one handler definition")
	}

	byName := make(map[HandlerName]*Definition, len(defs))
	for _, d := range defs {
		if !d.Name.Valid() {
			return nil, fmt.Errorf("unknown handler name: %q", d.Name)
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate handler definition: %s", d.Name)
		}
		byName[d.Name] = d
	}

	for _, d := range byName {
		for _, target := range d.Handoffs {
			if target == d.Name {
				return nil, fmt.Errorf("handler %s hands off to itself", d.Name)
			}
			if _, ok := byName[target]; !ok {
				return nil, fmt.Errorf("handler %s hands off to unregistered handler %s", d.Name, target)
			}
		}
	}

	return &Roster{defs: byName}, nil
}

// Get returns the definition for name, or an error if it is not registered.
func (r *Roster) Get(name HandlerName) (*Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("handler not registered: %s", name)
	}
	return d, nil
}

// Names returns the registered handler names in stable presentation order.
func (r *Roster) Names() []HandlerName {
	names := make([]HandlerName, 0, len(r.defs))
	for _, n := range AllHandlers {
		if _, ok := r.defs[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Edges returns every permitted handoff edge in the roster, in stable order.
func (r *Roster) Edges() []HandoffEdge {
	var edges []HandoffEdge
	for _, n := range r.Names() {
		d := r.defs[n]
		for _, target := range d.Handoffs {
			edges = append(edges, HandoffEdge{From: d.Name, To: target})
		}
	}
	return edges
}

// HandoffEdge is one permitted control-transfer edge in the handler graph.
type HandoffEdge struct {
	From HandlerName `json:"source"`
	To   HandlerName `json:"target"`
}
