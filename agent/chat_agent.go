package agent

import (
	"context"
	"fmt"

	"github.com/meshrun/meshrun/chatmodel"
)

// ChatAgent is the default Agent: it appends the incoming messages to the
// thread, calls a chatmodel.Client with the full history plus an optional
// system prompt and tool set, and appends the assistant's reply back onto
// the thread. It mirrors the teacher's pattern of a thin wrapper around a
// Client interface rather than a provider-specific implementation.
type ChatAgent struct {
	Client chatmodel.Client
	System string
	Tools  []chatmodel.ToolSpec
}

// NewChatAgent builds a ChatAgent around client.
func NewChatAgent(client chatmodel.Client) *ChatAgent {
	return &ChatAgent{Client: client}
}

func (a *ChatAgent) Run(ctx context.Context, messages []chatmodel.Message, thread *Thread) (RunResponse, error) {
	if thread == nil {
		thread = NewThread("")
	}
	thread.Append(messages...)

	req := chatmodel.Request{Messages: a.withSystem(thread.Messages), Tools: a.Tools}
	resp, err := a.Client.Chat(ctx, req)
	if err != nil {
		return RunResponse{}, fmt.Errorf("agent: chat: %w", err)
	}

	thread.Append(resp.Message)
	return RunResponse{Messages: []chatmodel.Message{resp.Message}, Thread: thread}, nil
}

func (a *ChatAgent) RunStream(ctx context.Context, messages []chatmodel.Message, thread *Thread) (<-chan RunUpdate, error) {
	streamer, ok := a.Client.(chatmodel.Streamer)
	if !ok {
		return nil, fmt.Errorf("agent: client does not support streaming")
	}
	if thread == nil {
		thread = NewThread("")
	}
	thread.Append(messages...)

	chunks, err := streamer.ChatStream(ctx, chatmodel.Request{Messages: a.withSystem(thread.Messages), Tools: a.Tools})
	if err != nil {
		return nil, fmt.Errorf("agent: chat stream: %w", err)
	}

	out := make(chan RunUpdate, 16)
	go func() {
		defer close(out)
		var assembled []chatmodel.Content
		for chunk := range chunks {
			if chunk.Content != nil {
				assembled = append(assembled, chunk.Content)
			}
			if chunk.Final {
				msg := chatmodel.Message{Role: chatmodel.RoleAssistant, Content: assembled}
				thread.Append(msg)
				out <- RunUpdate{Thread: thread, Done: true}
				return
			}
			out <- RunUpdate{Content: chunk.Content, Thread: thread}
		}
	}()
	return out, nil
}

func (a *ChatAgent) withSystem(messages []chatmodel.Message) []chatmodel.Message {
	if a.System == "" {
		return messages
	}
	out := make([]chatmodel.Message, 0, len(messages)+1)
	out = append(out, chatmodel.NewTextMessage(chatmodel.RoleSystem, a.System))
	out = append(out, messages...)
	return out
}
