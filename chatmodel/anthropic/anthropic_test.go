package anthropic

import (
	"context"
	"testing"

	"github.com/meshrun/meshrun/chatmodel"
)

type fakeTransport struct {
	gotSystem string
	gotMsgs   []chatmodel.Message
	resp      chatmodel.Response
	err       error
}

func (f *fakeTransport) createMessage(_ context.Context, system string, messages []chatmodel.Message, _ []chatmodel.ToolSpec) (chatmodel.Response, error) {
	f.gotSystem = system
	f.gotMsgs = messages
	return f.resp, f.err
}

func TestChatExtractsSystemPrompt(t *testing.T) {
	fake := &fakeTransport{resp: chatmodel.Response{Message: chatmodel.NewTextMessage(chatmodel.RoleAssistant, "hi")}}
	client := &Client{transport: fake}

	req := chatmodel.Request{Messages: []chatmodel.Message{
		chatmodel.NewTextMessage(chatmodel.RoleSystem, "be terse"),
		chatmodel.NewTextMessage(chatmodel.RoleUser, "hello"),
	}}

	resp, err := client.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if fake.gotSystem != "be terse" {
		t.Fatalf("expected system prompt extracted, got %q", fake.gotSystem)
	}
	if len(fake.gotMsgs) != 1 {
		t.Fatalf("expected system message stripped from conversation, got %d messages", len(fake.gotMsgs))
	}
	if resp.Message.TextValue() != "hi" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatRespectsCancelledContext(t *testing.T) {
	client := &Client{transport: &fakeTransport{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, chatmodel.Request{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
