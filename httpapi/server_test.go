package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshrun/meshrun/actor"
	actorstore "github.com/meshrun/meshrun/actor/store"
	"github.com/meshrun/meshrun/agent"
	"github.com/meshrun/meshrun/chatmodel"
)

type echoAgent struct{}

func (echoAgent) Run(ctx context.Context, messages []chatmodel.Message, thread *agent.Thread) (agent.RunResponse, error) {
	reply := chatmodel.NewTextMessage(chatmodel.RoleAssistant, "echo: "+messages[len(messages)-1].TextValue())
	thread.Append(messages...).Append(reply)
	return agent.RunResponse{Messages: []chatmodel.Message{reply}, Thread: thread}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := actor.NewRegistry()
	reg.Register("greeter", agent.Factory(echoAgent{}))
	rt := actor.NewRuntime(reg, actorstore.NewMemoryStore())
	return NewServer(rt, reg, nil)
}

func TestServer_RunRoundTrips(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(runRequest{
		Messages: []wireMessage{{Role: chatmodel.RoleUser, Content: []wireContent{{Kind: "text", Text: "hi there"}}}},
	})
	req := httptest.NewRequest(http.MethodPost, "/agents/greeter/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp runResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("expected a generated conversation id")
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "echo: hi there" {
		t.Fatalf("unexpected reply: %+v", resp.Messages)
	}
}

func TestServer_RunRejectsUnknownAgent(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(runRequest{
		Messages: []wireMessage{{Role: chatmodel.RoleUser, Content: []wireContent{{Kind: "text", Text: "hi"}}}},
	})
	req := httptest.NewRequest(http.MethodPost, "/agents/ghost/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for an unregistered agent type, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_ListAgentsAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))
	var listed map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed["agents"]) != 1 || listed["agents"][0] != "greeter" {
		t.Fatalf("expected [greeter], got %v", listed["agents"])
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	var health healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "ok" || !health.RuntimeRunning {
		t.Fatalf("expected {status:ok, runtime_running:true} before Stop, got %+v", health)
	}

	srv.Stop()
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.RuntimeRunning {
		t.Fatal("expected runtime_running to be false after Stop")
	}
}

func TestServer_RegisterWithoutBuilderReturns501(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents/register", bytes.NewReader([]byte(`{"name":"x"}`))))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a configured builder, got %d", rec.Code)
	}
}

func TestServer_RegisterWiresABuilder(t *testing.T) {
	reg := actor.NewRegistry()
	rt := actor.NewRuntime(reg, actorstore.NewMemoryStore())
	srv := NewServer(rt, reg, func(spec AgentSpec) (agent.Agent, error) {
		return echoAgent{}, nil
	})

	body := []byte(`{"name":"helper","kind":"chat"}`)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents/register", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Status != "registered" || resp.Name != "helper" {
		t.Fatalf("expected {status:registered, name:helper}, got %+v", resp)
	}
	if names := reg.TypeNames(); len(names) != 1 || names[0] != "helper" {
		t.Fatalf("expected helper to be registered, got %v", names)
	}
}
