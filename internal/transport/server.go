// Package transport exposes the conversational router over HTTP and
// websocket, along with the ticket, calendar, topology, health, and
// metrics endpoints.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/careswarm/careswarm/agent"
	"github.com/careswarm/careswarm/internal/artifacts"
	"github.com/careswarm/careswarm/internal/clinic"
	"github.com/careswarm/careswarm/internal/router"
	"github.com/careswarm/careswarm/pkg/observability"
)

// Config tunes the HTTP server.
type Config struct {
	Addr            string
	GlobalRPS       float64
	ClientRPS       float64
	Burst           int
	ShutdownTimeout time.Duration
}

// Server serves the clinic's public API.
type Server struct {
	cfg      Config
	router   *router.Router
	clinic   *clinic.Store
	health   *observability.HealthChecker
	limiter  *RateLimiter
	upgrader websocket.Upgrader

	httpServer *http.Server
}

// New assembles the server. Rate limits default to 50 global and 5
// per-client requests per second.
func New(cfg Config, rt *router.Router, clinicStore *clinic.Store, health *observability.HealthChecker) *Server {
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = 50
	}
	if cfg.ClientRPS <= 0 {
		cfg.ClientRPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		router:  rt,
		clinic:  clinicStore,
		health:  health,
		limiter: NewRateLimiter(cfg.GlobalRPS, cfg.ClientRPS, cfg.Burst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The chat UI is served from arbitrary origins in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /ws/chat", s.handleWSChat)
	mux.HandleFunc("GET /graph", s.handleGraph)
	mux.HandleFunc("GET /tickets/{id}", s.handleTicket)
	mux.HandleFunc("GET /calendar/{id}", s.handleCalendar)
	mux.HandleFunc("GET /health", s.health.Handler())
	mux.HandleFunc("GET /health/live", observability.LivenessHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	mux.Handle("GET /metrics", observability.MetricsHandler())
	return s.limiter.Middleware(s.withRequestMetrics(mux))
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: chat responses stream for the whole turn.
		IdleTimeout: 120 * time.Second,
	}
	log.Printf("[transport] listening on %s", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

// chatRequest covers both chat surfaces: POST /chat sends
// {"message", "session_id"}, websocket frames send {"content"}.
type chatRequest struct {
	Message   string `json:"message"`
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

func (r chatRequest) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Content
}

// chatFrame is one NDJSON line of the /chat response.
type chatFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Agent    string `json:"agent,omitempty"`
	From     string `json:"from,omitempty"`
	Tool     string `json:"tool,omitempty"`
	Status   string `json:"status,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleChat runs one turn and streams its lifecycle as NDJSON lines.
// The turn keeps running if the client disconnects mid-stream; the
// session record stays consistent either way.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	content := req.text()
	if content == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	turnCtx := context.WithoutCancel(r.Context())
	sess, err := s.router.EnsureSession(turnCtx, req.SessionID)
	if err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	writeFrame := func(f chatFrame) bool {
		if err := enc.Encode(f); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	clientGone := !writeFrame(chatFrame{Type: "thread_id", ThreadID: sess.ID})
	for ev := range s.router.Run(turnCtx, sess.ID, content) {
		if clientGone {
			continue // drain so the turn completes
		}
		if frame, ok := frameFor(ev); ok {
			clientGone = !writeFrame(frame)
		}
	}
}

// frameFor maps a router event onto its wire frame.
func frameFor(ev router.Event) (chatFrame, bool) {
	switch ev.Kind {
	case router.EventHandlerSwitched:
		return chatFrame{Type: "agent_event", Agent: string(ev.To), From: string(ev.From)}, true
	case router.EventToolStarted:
		return chatFrame{Type: "tool_event", Tool: ev.Tool, Status: "started"}, true
	case router.EventToolFinished:
		return chatFrame{Type: "tool_event", Tool: ev.Tool, Status: "finished", Error: ev.Err}, true
	case router.EventTokenProduced:
		return chatFrame{Type: "token", Content: ev.Content}, true
	case router.EventTurnCompleted:
		return chatFrame{Type: "reply", Agent: string(ev.Handler), Content: ev.Content}, true
	case router.EventTurnFailed:
		return chatFrame{Type: "error", Error: ev.Err}, true
	}
	return chatFrame{}, false
}

// handleWSChat serves a persistent chat connection. Incoming frames are
// {"content": "..."}; the reply to each is a sequence of agent_event
// frames followed by the final reply text.
func (s *Server) handleWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	observability.WSConnectionOpened()
	defer observability.WSConnectionClosed()

	ctx := context.WithoutCancel(r.Context())
	sess, err := s.router.EnsureSession(ctx, r.URL.Query().Get("thread_id"))
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"type": "error", "error": "session unavailable"})
		return
	}
	if err := conn.WriteJSON(map[string]string{"type": "thread_id", "thread_id": sess.ID}); err != nil {
		return
	}

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.text() == "" {
			continue
		}

		for ev := range s.router.Run(ctx, sess.ID, req.text()) {
			switch ev.Kind {
			case router.EventHandlerSwitched:
				_ = conn.WriteJSON(map[string]string{"type": "agent_event", "agent": string(ev.To)})
			case router.EventTurnCompleted:
				_ = conn.WriteMessage(websocket.TextMessage, []byte(ev.Content))
			case router.EventTurnFailed:
				_ = conn.WriteJSON(map[string]string{"type": "error", "error": ev.Err})
			}
		}
	}
}

// graphNode is one handler in the topology payload.
type graphNode struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Color string `json:"color"`
}

// handleGraph reports the static handler topology.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	roster := s.router.Roster()
	nodes := make([]graphNode, 0, len(roster.Names()))
	for _, name := range roster.Names() {
		def, err := roster.Get(name)
		if err != nil {
			continue
		}
		nodes = append(nodes, graphNode{ID: string(def.Name), Role: def.Role, Color: def.Color})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"nodes":         nodes,
		"edges":         roster.Edges(),
		"default_agent": string(agent.Triage),
	})
}

// ticketFor loads everything needed to render an appointment's artifacts.
func (s *Server) ticketFor(ctx context.Context, id uint) (*artifacts.Ticket, error) {
	appt, err := s.clinic.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor, err := s.clinic.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.clinic.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	return &artifacts.Ticket{
		AppointmentID: appt.ID,
		PatientName:   patient.Name,
		PatientEmail:  patient.Email,
		DoctorName:    doctor.Name,
		Specialty:     doctor.Specialty,
		Date:          appt.Date,
		Time:          appt.Time,
		Reason:        appt.Reason,
	}, nil
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	ticket, err := s.ticketFor(r.Context(), uint(id))
	if errors.Is(err, clinic.ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "ticket unavailable", http.StatusInternalServerError)
		return
	}

	pdf, err := artifacts.RenderPDF(*ticket)
	if err != nil {
		http.Error(w, "ticket unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=appointment-%d.pdf", ticket.AppointmentID))
	_, _ = w.Write(pdf)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	ticket, err := s.ticketFor(r.Context(), uint(id))
	if errors.Is(err, clinic.ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "calendar unavailable", http.StatusInternalServerError)
		return
	}

	ics, err := artifacts.RenderICS(*ticket)
	if err != nil {
		http.Error(w, "calendar unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=appointment-%d.ics", ticket.AppointmentID))
	_, _ = w.Write([]byte(ics))
}

// statusRecorder captures the response code for metrics. Flush and
// Hijack pass through so streaming and websocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status))
	})
}
