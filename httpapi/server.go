// Package httpapi exposes an actor.Runtime hosting agent actors over HTTP:
// POST a conversation turn to a named agent, register new agent types at
// runtime, and list what's available.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/meshrun/meshrun/actor"
	"github.com/meshrun/meshrun/agent"
)

// Registerer is the subset of agent construction the server needs in
// order to satisfy POST /agents/register: given a registered agent name
// and an already-built agent.Agent, wire it into the runtime's actor
// registry under that name.
type Registerer interface {
	RegisterAgent(name string, a agent.Agent)
}

// runtimeRegisterer adapts an actor.Registry to Registerer by wrapping
// each agent with agent.Factory before registering it.
type runtimeRegisterer struct {
	registry *actor.Registry
}

func (r runtimeRegisterer) RegisterAgent(name string, a agent.Agent) {
	r.registry.Register(name, agent.Factory(a))
}

// Server serves the HTTP surface described above. It owns no agents
// itself: callers register them on the shared actor.Registry directly, or
// through the /agents/register handler with an AgentBuilder supplied at
// construction.
type Server struct {
	runtime    *actor.Runtime
	registry   *actor.Registry
	registerer Registerer
	builder    AgentBuilder
	mux        *http.ServeMux
	running    atomic.Bool
}

// AgentBuilder constructs an agent.Agent from a client-supplied spec, for
// POST /agents/register. A deployment that never needs dynamic
// registration can pass nil; that endpoint then always answers 501.
type AgentBuilder func(spec AgentSpec) (agent.Agent, error)

// NewServer builds a Server around an existing runtime and registry. Both
// are expected to be shared with whatever process also drives the
// runtime directly (e.g. a handoff.Coordinator's participants).
func NewServer(runtime *actor.Runtime, registry *actor.Registry, builder AgentBuilder) *Server {
	s := &Server{
		runtime:    runtime,
		registry:   registry,
		registerer: runtimeRegisterer{registry: registry},
		builder:    builder,
		mux:        http.NewServeMux(),
	}
	s.running.Store(true)
	s.routes()
	return s
}

// Stop marks the runtime as no longer running for GET /health's
// runtime_running field. Call it once the caller has begun shutting the
// underlying actor.Runtime down.
func (s *Server) Stop() { s.running.Store(false) }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /agents/register", s.handleRegister)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("POST /agents/{agentName}/run", s.handleRun)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ServeHTTP makes Server usable anywhere an http.Handler is expected.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// runRequest is the body of POST /agents/{agentName}/run.
type runRequest struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []wireMessage `json:"messages"`
}

type runResponseBody struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []wireMessage `json:"messages"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	agentName := r.PathValue("agentName")
	if agentName == "" {
		writeError(w, http.StatusBadRequest, "agentName is required")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must be non-empty")
		return
	}
	messages, err := unmarshalMessages(req.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := agent.NewProxyThread(req.ConversationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proxy := agent.NewAgentProxy(s.runtime, agentName)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	resp, err := proxy.Run(ctx, messages, thread.AsThread())
	if err != nil {
		if env, ok := asErrorEnvelope(err); ok {
			writeError(w, http.StatusUnprocessableEntity, env.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	wireReply, err := marshalMessages(resp.Messages)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponseBody{
		ConversationID: thread.Thread.ID,
		Messages:       wireReply,
	})
}

// AgentSpec is the JSON shape POST /agents/register accepts. Its fields
// are deliberately generic (Kind plus a free-form Config map): concrete
// meaning is up to whatever AgentBuilder the Server was constructed
// with.
type AgentSpec struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		writeError(w, http.StatusNotImplemented, "no agent builder configured for dynamic registration")
		return
	}

	var spec AgentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if spec.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	a, err := s.builder(spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to build agent: "+err.Error())
		return
	}

	s.registerer.RegisterAgent(spec.Name, a)
	writeJSON(w, http.StatusCreated, registerResponse{Status: "registered", Name: spec.Name})
}

// registerResponse is the body of POST /agents/register, matching
// spec.md's `{status:"registered", name}` wire contract.
type registerResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"agents": s.registry.TypeNames()})
}

// healthResponse is the body of GET /health, matching spec.md's
// `{status, runtime_running}` wire contract.
type healthResponse struct {
	Status         string `json:"status"`
	RuntimeRunning bool   `json:"runtime_running"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", RuntimeRunning: s.running.Load()})
}

func asErrorEnvelope(err error) (agent.ErrorEnvelope, bool) {
	env, ok := err.(agent.ErrorEnvelope)
	return env, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
