package chatmodel

import "context"

// Request bundles everything a Client needs to produce one assistant turn.
type Request struct {
	Messages []Message
	Tools    []ToolSpec
}

// Response is the non-streaming result of a Chat call: the assistant
// message it produced plus the usage it consumed.
type Response struct {
	Message Message
	Usage   UsageDetails
}

// Chunk is one increment of a streaming response. Final is true on the
// chunk that completes the turn, at which point Content may be empty and
// Usage carries the turn's total.
type Chunk struct {
	Content Content
	Usage   UsageDetails
	Final   bool
}

// Client is the interface every concrete provider adapter implements. It
// generalizes the teacher's ChatModel interface (graph/model/chat.go) from
// a single string-valued Content field to the Content union, so provider
// responses carry structured tool calls, reasoning, and attachments rather
// than flattened text.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}

// Streamer is implemented by providers that can emit incremental chunks
// instead of waiting for the full turn.
type Streamer interface {
	ChatStream(ctx context.Context, req Request) (<-chan Chunk, error)
}
