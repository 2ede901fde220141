package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/meshrun/meshrun/chatmodel"
)

type fakeCompleter struct {
	calls int
	errs  []error
	resp  chatmodel.Response
}

func (f *fakeCompleter) createChatCompletion(context.Context, []chatmodel.Message, []chatmodel.ToolSpec) (chatmodel.Response, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return chatmodel.Response{}, f.errs[idx]
	}
	return f.resp, nil
}

func TestChatRetriesTransientErrorsThenSucceeds(t *testing.T) {
	fake := &fakeCompleter{
		errs: []error{errors.New("connection reset"), errors.New("temporary failure")},
		resp: chatmodel.Response{Message: chatmodel.NewTextMessage(chatmodel.RoleAssistant, "ok")},
	}
	client := &Client{transport: fake, maxRetries: 3, retryDelay: 0}

	resp, err := client.Chat(context.Background(), chatmodel.Request{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.TextValue() != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.calls)
	}
}

func TestChatDoesNotRetryNonTransientErrors(t *testing.T) {
	fake := &fakeCompleter{errs: []error{errors.New("invalid_request_error: bad schema")}}
	client := &Client{transport: fake, maxRetries: 3, retryDelay: 0}

	_, err := client.Chat(context.Background(), chatmodel.Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for non-transient error, got %d", fake.calls)
	}
}

func TestParseToolArgumentsHandlesValidAndInvalidJSON(t *testing.T) {
	got := parseToolArguments(`{"a":1}`)
	if got["a"].(float64) != 1 {
		t.Fatalf("expected parsed JSON, got %+v", got)
	}

	fallback := parseToolArguments("not json")
	if fallback["_raw"] != "not json" {
		t.Fatalf("expected raw fallback, got %+v", fallback)
	}
}
