package handoff

import (
	"testing"

	"github.com/meshrun/meshrun/chatmodel"
)

func TestDetectHandoff_StructuredTakesPrecedence(t *testing.T) {
	msg := chatmodel.Message{
		Role:                 chatmodel.RoleAssistant,
		Content:              []chatmodel.Content{chatmodel.Text{Value: "HANDOFF_TO: billing\n"}},
		AdditionalProperties: map[string]any{"handoff_to": "support"},
	}
	id, ok := DetectHandoff(msg, map[string]bool{"support": true, "billing": true})
	if !ok || id != "support" {
		t.Fatalf("expected structured signal 'support' to win, got %q, %v", id, ok)
	}
}

func TestDetectHandoff_ToolCallSignal(t *testing.T) {
	msg := chatmodel.Message{
		Role:    chatmodel.RoleAssistant,
		Content: []chatmodel.Content{chatmodel.FunctionCall{Name: "handoff_to_billing"}},
	}
	id, ok := DetectHandoff(msg, map[string]bool{"billing": true})
	if !ok || id != "billing" {
		t.Fatalf("expected tool-call signal 'billing', got %q, %v", id, ok)
	}
}

func TestDetectHandoff_TextHintFallback(t *testing.T) {
	msg := chatmodel.NewTextMessage(chatmodel.RoleAssistant, "Let me get you help.\nHANDOFF_TO: billing\n")
	id, ok := DetectHandoff(msg, map[string]bool{"billing": true})
	if !ok || id != "billing" {
		t.Fatalf("expected text-hint signal 'billing', got %q, %v", id, ok)
	}
}

func TestDetectHandoff_UnknownTargetIsNoHandoff(t *testing.T) {
	msg := chatmodel.NewTextMessage(chatmodel.RoleAssistant, "HANDOFF_TO: ghost\n")
	_, ok := DetectHandoff(msg, map[string]bool{"billing": true})
	if ok {
		t.Fatal("expected an unknown target id to be treated as no handoff")
	}
}
