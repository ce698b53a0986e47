// Package router drives conversation turns: it invokes the active
// handler's model, executes tool calls, performs handoffs between
// handlers, and streams lifecycle events to the transport layer.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/careswarm/careswarm/agent"
	"github.com/careswarm/careswarm/internal/llm"
	"github.com/careswarm/careswarm/internal/tools"
	"github.com/careswarm/careswarm/pkg/observability"
	"github.com/careswarm/careswarm/pkg/session"
)

// DefaultMaxIterations bounds model/tool cycles within one turn.
const DefaultMaxIterations = 10

// apologyReply is returned when a turn exhausts its iteration budget.
const apologyReply = "I'm sorry, I wasn't able to complete that request. Could you rephrase or try again?"

// eventBuffer sizes the per-turn event channel. Emission never blocks
// turn execution; if a consumer falls this far behind, non-terminal
// events are dropped.
const eventBuffer = 256

// Options tunes turn execution.
type Options struct {
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int
}

// Router executes turns against a roster of handlers. Turns on the same
// session are serialized; turns on different sessions run concurrently.
type Router struct {
	provider llm.Provider
	registry *tools.Registry
	roster   *agent.Roster
	store    session.Store
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a router. Handler tool bindings are resolved eagerly so a
// misconfigured roster fails here, not mid-conversation.
func New(provider llm.Provider, registry *tools.Registry, roster *agent.Roster, store session.Store, opts Options) (*Router, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	for _, name := range roster.Names() {
		def, err := roster.Get(name)
		if err != nil {
			return nil, err
		}
		if _, err := registry.Schemas(def.Tools); err != nil {
			return nil, fmt.Errorf("handler %s: %w", name, err)
		}
	}
	return &Router{
		provider: provider,
		registry: registry,
		roster:   roster,
		store:    store,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Roster exposes the handler graph for the topology endpoint.
func (r *Router) Roster() *agent.Roster { return r.roster }

// EnsureSession loads a session, creating and persisting a fresh one
// when id is empty or unknown.
func (r *Router) EnsureSession(ctx context.Context, id string) (*session.Session, error) {
	if id != "" {
		sess, err := r.store.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}
	sess := session.New()
	if id != "" {
		sess.ID = id
	}
	if err := r.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Run executes one turn asynchronously and returns its event stream.
// The channel is closed after the terminal event. A consumer that stops
// reading does not stall the turn.
func (r *Router) Run(ctx context.Context, sessionID, content string) <-chan Event {
	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		r.turn(ctx, sessionID, content, events)
	}()
	return events
}

// sessionLock returns the mutex serializing turns for one session.
func (r *Router) sessionLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

func (r *Router) turn(ctx context.Context, sessionID, content string, events chan<- Event) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "router.turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	sess, err := r.EnsureSession(ctx, sessionID)
	if err != nil {
		r.fail(events, sessionID, "", fmt.Errorf("load session: %w", err))
		return
	}
	sess.Append(agent.UserMessage(content))

	for i := 0; i < r.opts.MaxIterations; i++ {
		def, err := r.roster.Get(sess.ActiveHandler)
		if err != nil {
			r.fail(events, sess.ID, sess.ActiveHandler, err)
			return
		}

		resp, err := r.complete(ctx, sess, def)
		if err != nil {
			_ = r.store.Put(ctx, sess)
			r.fail(events, sess.ID, sess.ActiveHandler, err)
			observability.RecordTurn(string(sess.ActiveHandler), "failed", time.Since(start))
			return
		}

		outcome := classify(resp)
		switch outcome.Kind {
		case agent.OutcomeHandoff:
			if err := r.handoff(ctx, sess, def, outcome, events); err != nil {
				r.fail(events, sess.ID, sess.ActiveHandler, err)
				return
			}

		case agent.OutcomeToolCalls:
			if err := r.executeTools(ctx, sess, resp.ToolCalls, events); err != nil {
				r.fail(events, sess.ID, sess.ActiveHandler, err)
				return
			}

		case agent.OutcomeReply:
			sess.Append(agent.AssistantMessage(sess.ActiveHandler, resp.Content))
			if err := r.store.Put(ctx, sess); err != nil {
				r.fail(events, sess.ID, sess.ActiveHandler, fmt.Errorf("persist session: %w", err))
				return
			}
			r.emit(events, Event{
				Kind: EventTokenProduced, SessionID: sess.ID,
				Handler: sess.ActiveHandler, Content: resp.Content,
			})
			r.emit(events, Event{
				Kind: EventTurnCompleted, SessionID: sess.ID,
				Handler: sess.ActiveHandler, Content: resp.Content,
			})
			observability.RecordTurn(string(sess.ActiveHandler), "completed", time.Since(start))
			return
		}
	}

	// Iteration budget exhausted: answer with a generic apology rather
	// than an error, and keep the session usable.
	sess.Append(agent.AssistantMessage(sess.ActiveHandler, apologyReply))
	if err := r.store.Put(ctx, sess); err != nil {
		r.fail(events, sess.ID, sess.ActiveHandler, fmt.Errorf("persist session: %w", err))
		return
	}
	r.emit(events, Event{
		Kind: EventTurnCompleted, SessionID: sess.ID,
		Handler: sess.ActiveHandler, Content: apologyReply,
	})
	observability.RecordTurn(string(sess.ActiveHandler), "capped", time.Since(start))
}

// complete invokes the provider with the active handler's instructions
// and tool subset.
func (r *Router) complete(ctx context.Context, sess *session.Session, def *agent.Definition) (*llm.Response, error) {
	schemas, err := r.registry.Schemas(r.boundTools(sess, def))
	if err != nil {
		return nil, err
	}
	schemas = append(schemas, tools.HandoffSchemas(def.Handoffs)...)

	resp, err := r.provider.Complete(ctx, llm.Request{
		Model:        r.opts.Model,
		Instructions: def.Instructions,
		Messages:     sess.Messages,
		Tools:        schemas,
		Temperature:  r.opts.Temperature,
		MaxTokens:    r.opts.MaxTokens,
	})
	if err != nil {
		observability.RecordModelRequest(r.provider.Name(), "error", 0, 0)
		return nil, fmt.Errorf("handler %s completion: %w", def.Name, err)
	}
	observability.RecordModelRequest(r.provider.Name(), "ok", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// boundTools returns the handler's tool names, dropping the identity
// tools once the session is verified so the model cannot re-run them.
func (r *Router) boundTools(sess *session.Session, def *agent.Definition) []string {
	if !sess.State.Verified {
		return def.Tools
	}
	bound := make([]string, 0, len(def.Tools))
	for _, name := range def.Tools {
		if name == "verify_user" || name == "register_user" {
			continue
		}
		bound = append(bound, name)
	}
	return bound
}

// classify maps a model response onto a tagged outcome. A handoff call
// wins over any co-emitted text or tool calls; text alongside it is
// recorded as suppressed, never shown.
func classify(resp *llm.Response) agent.Outcome {
	for _, call := range resp.ToolCalls {
		if target, ok := agent.HandlerForHandoffTool(call.Name); ok {
			return agent.Outcome{
				Kind:        agent.OutcomeHandoff,
				Target:      target,
				HandoffCall: call,
				Suppressed:  resp.Content,
			}
		}
	}
	if len(resp.ToolCalls) > 0 {
		return agent.Outcome{Kind: agent.OutcomeToolCalls, ToolCalls: resp.ToolCalls}
	}
	return agent.Outcome{Kind: agent.OutcomeReply, Reply: resp.Content}
}

// handoff commits the handler switch and emits the event before the new
// handler runs. The suppressed text never reaches the transcript.
func (r *Router) handoff(ctx context.Context, sess *session.Session, def *agent.Definition, outcome agent.Outcome, events chan<- Event) error {
	call := outcome.HandoffCall
	sess.Append(agent.Message{
		Role:      agent.RoleAssistant,
		Handler:   sess.ActiveHandler,
		ToolCalls: []agent.ToolCall{call},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	if !def.CanHandOff(outcome.Target) {
		// Not a permitted edge; tell the model and stay put.
		sess.Append(agent.ToolResultMessage(call.ID,
			fmt.Sprintf("Transfer to %s is not permitted from %s.", outcome.Target, def.Name)))
		return nil
	}

	from := sess.ActiveHandler
	sess.Append(agent.ToolResultMessage(call.ID, fmt.Sprintf("Transferred to the %s assistant.", outcome.Target)))
	sess.ActiveHandler = outcome.Target
	if err := r.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("persist handoff: %w", err)
	}

	r.emit(events, Event{
		Kind: EventHandlerSwitched, SessionID: sess.ID,
		From: from, To: outcome.Target, Handler: outcome.Target,
	})
	observability.RecordHandoff(string(from), string(outcome.Target))
	return nil
}

// executeTools runs every requested call in order. Tool errors are fed
// back to the model as results; only infrastructure failures abort.
func (r *Router) executeTools(ctx context.Context, sess *session.Session, calls []agent.ToolCall, events chan<- Event) error {
	sess.Append(agent.Message{
		Role:      agent.RoleAssistant,
		Handler:   sess.ActiveHandler,
		ToolCalls: calls,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	for _, call := range calls {
		r.emit(events, Event{
			Kind: EventToolStarted, SessionID: sess.ID,
			Handler: sess.ActiveHandler, Tool: call.Name, CallID: call.ID,
		})

		toolStart := time.Now()
		result, err := r.registry.Execute(ctx, call.Name, tools.Invocation{
			Args:    call.Arguments,
			Session: sess,
		})
		status := "ok"
		if err != nil {
			status = "error"
			result = toolErrorResult(err)
		}
		observability.RecordToolCall(call.Name, status, time.Since(toolStart))

		sess.Append(agent.ToolResultMessage(call.ID, result))
		ev := Event{
			Kind: EventToolFinished, SessionID: sess.ID,
			Handler: sess.ActiveHandler, Tool: call.Name, CallID: call.ID,
		}
		if err != nil {
			ev.Err = err.Error()
		}
		r.emit(events, ev)
	}

	if err := r.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// toolErrorResult encodes a tool failure as a result the model can react
// to in the next iteration.
func toolErrorResult(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

func (r *Router) fail(events chan<- Event, sessionID string, handler agent.HandlerName, err error) {
	log.Printf("[router] turn failed (session=%s handler=%s): %v", sessionID, handler, err)
	r.emit(events, Event{
		Kind: EventTurnFailed, SessionID: sessionID,
		Handler: handler, Err: err.Error(),
	})
}

// emit delivers an event without ever blocking the turn. Non-terminal
// events are dropped once the buffer is one short of full; the spare
// slot guarantees the terminal event always fits, so a stream never
// closes without its final frame.
func (r *Router) emit(events chan<- Event, ev Event) {
	ev.Timestamp = time.Now().UTC()
	if ev.Terminal() {
		events <- ev
		return
	}
	if len(events) >= cap(events)-1 {
		log.Printf("[router] dropping event %s (session=%s): consumer too slow", ev.Kind, ev.SessionID)
		return
	}
	events <- ev
}
