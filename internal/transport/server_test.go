package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careswarm/careswarm/internal/artifacts"
	"github.com/careswarm/careswarm/internal/clinic"
	"github.com/careswarm/careswarm/internal/handlers"
	"github.com/careswarm/careswarm/internal/llm"
	"github.com/careswarm/careswarm/internal/router"
	"github.com/careswarm/careswarm/internal/tools"
	"github.com/careswarm/careswarm/pkg/observability"
	"github.com/careswarm/careswarm/pkg/session"
)

func testServer(t *testing.T, mock *llm.MockProvider) (*httptest.Server, *clinic.Store) {
	t.Helper()

	store, err := clinic.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Seed(context.Background()))

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterClinicTools(registry, tools.Deps{
		Clinic:  store,
		Mailer:  artifacts.LogMailer{},
		BaseURL: "http://localhost:8080",
	}))

	roster, err := handlers.NewRoster()
	require.NoError(t, err)

	sessions := session.NewMemoryStore()
	t.Cleanup(func() { _ = sessions.Close() })

	rt, err := router.New(mock, registry, roster, sessions, router.Options{})
	require.NoError(t, err)

	health := observability.NewHealthChecker("test")
	health.Register(&observability.HealthCheck{
		Name:      "clinic_db",
		CheckFunc: store.Ping,
		Critical:  true,
	})

	// Generous limits so tests never trip them.
	srv := New(Config{GlobalRPS: 1000, ClientRPS: 1000, Burst: 1000}, rt, store, health)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postChat(t *testing.T, ts *httptest.Server, body string) []map[string]any {
	t.Helper()
	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var frames []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())
	return frames
}

func frameTypes(frames []map[string]any) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f["type"].(string)
	}
	return out
}

func TestChatStreamsReply(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddResponse(llm.MockReply("Hello! What's your email?"))
	ts, _ := testServer(t, mock)

	frames := postChat(t, ts, `{"message":"hi"}`)
	require.Equal(t, []string{"thread_id", "token", "reply"}, frameTypes(frames))
	assert.NotEmpty(t, frames[0]["thread_id"])
	assert.Equal(t, "Hello! What's your email?", frames[2]["content"])
	assert.Equal(t, "Triage", frames[2]["agent"])
}

func TestChatStreamsHandoffAndToolEvents(t *testing.T) {
	mock := llm.NewMockProvider()
	handoff := llm.MockToolCall("call_1", "to_appointment", map[string]any{})
	mock.AddResponse(handoff)
	mock.AddResponse(llm.MockToolCall("call_2", "search_doctors", map[string]any{}))
	mock.AddResponse(llm.MockReply("We have four doctors available."))
	ts, _ := testServer(t, mock)

	frames := postChat(t, ts, `{"message":"book me in"}`)
	require.Equal(t, []string{
		"thread_id", "agent_event", "tool_event", "tool_event", "token", "reply",
	}, frameTypes(frames))
	assert.Equal(t, "Appointment", frames[1]["agent"])
	assert.Equal(t, "Triage", frames[1]["from"])
	assert.Equal(t, "search_doctors", frames[2]["tool"])
	assert.Equal(t, "started", frames[2]["status"])
	assert.Equal(t, "finished", frames[3]["status"])
}

func TestChatReusesThread(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddResponse(llm.MockReply("first"))
	mock.AddResponse(llm.MockReply("second"))
	ts, _ := testServer(t, mock)

	frames := postChat(t, ts, `{"message":"one"}`)
	threadID := frames[0]["thread_id"].(string)

	frames = postChat(t, ts, `{"message":"two","session_id":"`+threadID+`"}`)
	assert.Equal(t, threadID, frames[0]["thread_id"])

	// Second turn saw the first turn's history.
	require.Len(t, mock.Calls, 2)
	assert.Len(t, mock.Calls[1].Messages, 3)
}

func TestChatRejectsBadRequests(t *testing.T) {
	ts, _ := testServer(t, llm.NewMockProvider())

	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketChat(t *testing.T) {
	mock := llm.NewMockProvider()
	handoff := llm.MockToolCall("call_1", "to_billing", map[string]any{})
	mock.AddResponse(handoff)
	mock.AddResponse(llm.MockReply("Your balance is $100."))
	ts, _ := testServer(t, mock)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "thread_id", hello["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "what do I owe?"}))

	var agentEvent map[string]string
	require.NoError(t, conn.ReadJSON(&agentEvent))
	assert.Equal(t, "agent_event", agentEvent["type"])
	assert.Equal(t, "Billing", agentEvent["agent"])

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Your balance is $100.", string(reply))
}

func TestGraphEndpoint(t *testing.T) {
	ts, _ := testServer(t, llm.NewMockProvider())

	resp, err := http.Get(ts.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var graph struct {
		Nodes []struct {
			ID    string `json:"id"`
			Role  string `json:"role"`
			Color string `json:"color"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
		DefaultAgent string `json:"default_agent"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&graph))

	assert.Len(t, graph.Nodes, 4)
	assert.Len(t, graph.Edges, 12)
	assert.Equal(t, "Triage", graph.DefaultAgent)
	assert.Equal(t, "Triage", graph.Nodes[0].ID)
	assert.Equal(t, "#3B82F6", graph.Nodes[0].Color)
}

func TestTicketAndCalendarEndpoints(t *testing.T) {
	ts, store := testServer(t, llm.NewMockProvider())

	appt := &clinic.Appointment{
		DoctorID: 1, PatientID: 1,
		Date: "2026-09-15", Time: "10:00",
		Status: clinic.StatusConfirmed, Reason: "Checkup",
	}
	require.NoError(t, store.BookAppointment(context.Background(), appt))

	resp, err := http.Get(ts.URL + "/tickets/" + itoa(appt.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	buf := make([]byte, 5)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(buf))

	resp, err = http.Get(ts.URL + "/calendar/" + itoa(appt.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")

	resp, err = http.Get(ts.URL + "/tickets/99999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/tickets/notanumber")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := testServer(t, llm.NewMockProvider())

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1000, 2, 2)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	// A different client has its own budget.
	assert.True(t, rl.Allow("5.6.7.8"))
}

func itoa(id uint) string {
	return strconv.Itoa(int(id))
}
