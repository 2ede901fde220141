package handoff

import (
	"context"
	"testing"

	"github.com/meshrun/meshrun/agent"
	"github.com/meshrun/meshrun/chatmodel"
	"github.com/meshrun/meshrun/workflow"
)

type scriptedAgent struct {
	replies []chatmodel.Message
	n       int
}

func (s *scriptedAgent) Run(ctx context.Context, messages []chatmodel.Message, thread *agent.Thread) (agent.RunResponse, error) {
	reply := s.replies[s.n]
	if s.n < len(s.replies)-1 {
		s.n++
	}
	return agent.RunResponse{Messages: []chatmodel.Message{reply}}, nil
}

func TestCoordinator_HandsOffToAllowedSpecialist(t *testing.T) {
	coordinatorAgent := &scriptedAgent{replies: []chatmodel.Message{
		chatmodel.NewTextMessage(chatmodel.RoleAssistant, "HANDOFF_TO: billing\n"),
	}}
	billingAgent := &scriptedAgent{replies: []chatmodel.Message{
		chatmodel.NewTextMessage(chatmodel.RoleAssistant, "I can help with billing."),
	}}

	c, err := New(Config{
		CoordinatorID: "coordinator",
		Participants: WithInstances(map[string]agent.Agent{
			"coordinator": coordinatorAgent,
			"billing":     billingAgent,
		}),
		AllowedHandoffs:         map[string][]string{"coordinator": {"billing"}},
		Mode:                    HumanInLoop,
		ReturnToPreviousEnabled: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runner, err := workflow.NewRunner(c.Workflow())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	run, err := runner.NewRun(context.Background(), "run-1", chatmodel.NewTextMessage(chatmodel.RoleUser, "I have a billing question"))
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	events, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var awaiting AwaitingTurn
	var sawRequest bool
	for _, ev := range events {
		if ri, ok := ev.(workflow.RequestInfoEvent); ok {
			sawRequest = true
			awaiting = ri.Request.(AwaitingTurn)
		}
	}
	if !sawRequest {
		t.Fatal("expected a RequestInfoEvent pausing for the next user turn")
	}
	if awaiting.AwaitingAgentID != "billing" {
		t.Fatalf("expected to be awaiting billing's turn, got %q", awaiting.AwaitingAgentID)
	}
	if len(awaiting.Conversation) != 3 {
		t.Fatalf("expected 3 accumulated messages (user, coordinator handoff, billing reply), got %d", len(awaiting.Conversation))
	}
}

func TestCoordinator_RejectsMixedInstancesAndFactories(t *testing.T) {
	p := Participants{
		instances: map[string]agent.Agent{"a": &scriptedAgent{}},
		factories: map[string]AgentFactory{"b": func() (agent.Agent, error) { return &scriptedAgent{}, nil }},
	}
	_, err := New(Config{CoordinatorID: "a", Participants: p})
	if err == nil {
		t.Fatal("expected an error for mixed instances and factories")
	}
}

func TestCoordinator_AutonomousModeRequiresPositiveTurnLimit(t *testing.T) {
	_, err := New(Config{
		CoordinatorID: "a",
		Participants:  WithInstances(map[string]agent.Agent{"a": &scriptedAgent{}}),
		Mode:          Autonomous,
	})
	if err == nil {
		t.Fatal("expected an error when AutonomousTurnLimit is not set in autonomous mode")
	}
}

func TestCoordinator_AutonomousModeStopsAtTurnLimit(t *testing.T) {
	loopAgent := &scriptedAgent{replies: []chatmodel.Message{
		chatmodel.NewTextMessage(chatmodel.RoleAssistant, "still working..."),
	}}

	c, err := New(Config{
		CoordinatorID:           "a",
		Participants:            WithInstances(map[string]agent.Agent{"a": loopAgent}),
		Mode:                    Autonomous,
		ReturnToPreviousEnabled: true,
		AutonomousTurnLimit:     3,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runner, err := workflow.NewRunner(c.Workflow())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	run, err := runner.NewRun(context.Background(), "run-2", chatmodel.NewTextMessage(chatmodel.RoleUser, "go"))
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if _, err := run.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	output, done := run.Output()
	if !done {
		t.Fatal("expected the run to terminate once the autonomous turn limit is reached")
	}
	snapshot := output.(map[string]any)
	st := snapshot[stateKey].(conversationState)
	if st.TurnsInAutonomous < 3 {
		t.Errorf("expected at least 3 autonomous turns, got %d", st.TurnsInAutonomous)
	}
}
