// Command meshrund hosts an actor.Runtime over HTTP: it registers one
// agent actor per configured model backend and serves the run/register/
// list/health surface for clients to drive them.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshrun/meshrun/actor"
	actorstore "github.com/meshrun/meshrun/actor/store"
	"github.com/meshrun/meshrun/agent"
	"github.com/meshrun/meshrun/chatmodel"
	"github.com/meshrun/meshrun/chatmodel/anthropic"
	"github.com/meshrun/meshrun/chatmodel/openai"
	"github.com/meshrun/meshrun/httpapi"
	"github.com/meshrun/meshrun/telemetry"
)

type config struct {
	addr         string
	storeDriver  string // "memory", "sqlite", "mysql"
	storeDSN     string
	retentionCap int
	jsonLogs     bool
}

func loadConfig() config {
	cfg := config{
		addr:         ":8080",
		storeDriver:  "memory",
		retentionCap: 128,
	}
	if v := os.Getenv("MESHRUND_ADDR"); v != "" {
		cfg.addr = v
	}
	if v := os.Getenv("MESHRUND_STORE_DRIVER"); v != "" {
		cfg.storeDriver = v
	}
	if v := os.Getenv("MESHRUND_STORE_DSN"); v != "" {
		cfg.storeDSN = v
	}
	if v := os.Getenv("MESHRUND_JSON_LOGS"); v == "1" {
		cfg.jsonLogs = true
	}
	return cfg
}

func buildStore(cfg config) (actor.StateStore, error) {
	switch cfg.storeDriver {
	case "memory", "":
		return actorstore.NewMemoryStore(), nil
	case "sqlite":
		return actorstore.NewSQLiteStore(cfg.storeDSN)
	case "mysql":
		return actorstore.NewMySQLStore(cfg.storeDSN)
	default:
		log.Fatalf("meshrund: unknown MESHRUND_STORE_DRIVER %q", cfg.storeDriver)
		return nil, nil
	}
}

// registerConfiguredAgents wires one ChatAgent per provider whose API key
// is present in the environment, so a deployment only needs to set the
// credentials for the backends it actually wants to serve.
func registerConfiguredAgents(reg *actor.Registry) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		model := os.Getenv("MESHRUND_ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-3-5-sonnet-latest"
		}
		client := anthropic.New(key, model)
		reg.Register("anthropic", agent.Factory(agent.NewChatAgent(client)))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := os.Getenv("MESHRUND_OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o"
		}
		client := openai.New(key, model)
		reg.Register("openai", agent.Factory(agent.NewChatAgent(client)))
	}
}

func main() {
	cfg := loadConfig()

	logger := telemetry.NewLogLogger(os.Stdout, cfg.jsonLogs)

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("meshrund: store init: %v", err)
	}

	reg := actor.NewRegistry()
	registerConfiguredAgents(reg)

	rt := actor.NewRuntime(reg, store,
		actor.WithLogger(logger),
		actor.WithRetentionCap(cfg.retentionCap),
	)

	srv := httpapi.NewServer(rt, reg, dynamicAgentBuilder)

	httpServer := &http.Server{
		Addr:         cfg.addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("meshrund: listening on %s", cfg.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("meshrund: server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("meshrund: shutting down...")
	srv.Stop()

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutCtx); err != nil {
		log.Printf("meshrund: http shutdown error: %v", err)
	}
	if err := rt.Stop(shutCtx, 20*time.Second); err != nil {
		log.Printf("meshrund: runtime shutdown error: %v", err)
	}
	log.Println("meshrund: stopped")
}

// dynamicAgentBuilder implements httpapi.AgentBuilder for the
// "chat" kind: POST /agents/register with
// {"name": "support", "kind": "chat", "config": {"provider": "anthropic", "model": "...", "system": "..."}}
// builds and registers a ChatAgent against an already-configured provider
// API key, without requiring a restart.
func dynamicAgentBuilder(spec httpapi.AgentSpec) (agent.Agent, error) {
	if spec.Kind != "chat" {
		return nil, fmt.Errorf("meshrund: unsupported agent kind %q", spec.Kind)
	}
	provider, _ := spec.Config["provider"].(string)
	model, _ := spec.Config["model"].(string)
	system, _ := spec.Config["system"].(string)

	var client chatmodel.Client
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("meshrund: ANTHROPIC_API_KEY is not set")
		}
		client = anthropic.New(key, model)
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("meshrund: OPENAI_API_KEY is not set")
		}
		client = openai.New(key, model)
	default:
		return nil, fmt.Errorf("meshrund: unsupported provider %q", provider)
	}
	return &agent.ChatAgent{Client: client, System: system}, nil
}
