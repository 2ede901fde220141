// Package chatmodel defines the streaming chat contract shared by agents,
// the actor runtime, and the handoff coordinator: messages built from a
// closed set of content variants, a token-usage monoid, and the Client
// interface that concrete providers implement.
package chatmodel

import "fmt"

// Content is a closed union of the shapes a single piece of chat content
// can take. Every provider response is normalized into one or more Content
// values before it reaches workflow or agent code, so downstream code never
// type-switches on provider-specific payloads.
//
// Implementations live in this file; isContent is unexported so the set
// cannot be extended outside the package, mirroring how graph.Next in the
// teacher closes Goto/Stop into a single routing type.
type Content interface {
	isContent()
}

// Text is plain assistant- or user-authored text.
type Text struct {
	Value string
}

func (Text) isContent() {}

// TextReasoning is a model's chain-of-thought or reasoning trace, kept
// distinct from Text so callers can choose to hide it from end users while
// still persisting it on the thread.
type TextReasoning struct {
	Value string
}

func (TextReasoning) isContent() {}

// Data is inline binary content encoded as a data URI
// (data:<media-type>;base64,<payload>), e.g. an image or audio clip
// attached to a message.
type Data struct {
	MediaType string
	Bytes     []byte
}

func (Data) isContent() {}

// URI is a reference to out-of-band content (an uploaded file, a generated
// image) identified by a provider or object-store URL rather than inlined.
type URI struct {
	MediaType string
	Value     string
}

func (URI) isContent() {}

// FunctionCall is a model-requested invocation of a named tool.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments map[string]any
}

func (FunctionCall) isContent() {}

// FunctionResult is the result of executing a FunctionCall, correlated by
// CallID.
type FunctionResult struct {
	CallID string
	Name   string
	Result any
	Error  string // non-empty if the tool invocation failed
}

func (FunctionResult) isContent() {}

// Usage reports token accounting for the turn that produced it.
type Usage struct {
	Details UsageDetails
}

func (Usage) isContent() {}

// ErrorContent represents a provider- or tool-level error surfaced inline
// in the content stream rather than as a Go error return, so a partially
// successful turn (some content, then an error) can still be represented.
type ErrorContent struct {
	Message string
}

func (ErrorContent) isContent() {}

// String renders a content variant for logging and debugging.
func String(c Content) string {
	switch v := c.(type) {
	case Text:
		return v.Value
	case TextReasoning:
		return "[reasoning] " + v.Value
	case Data:
		return fmt.Sprintf("[data %s, %d bytes]", v.MediaType, len(v.Bytes))
	case URI:
		return fmt.Sprintf("[uri %s %s]", v.MediaType, v.Value)
	case FunctionCall:
		return fmt.Sprintf("[call %s(%s) -> %v]", v.Name, v.CallID, v.Arguments)
	case FunctionResult:
		if v.Error != "" {
			return fmt.Sprintf("[result %s(%s) error: %s]", v.Name, v.CallID, v.Error)
		}
		return fmt.Sprintf("[result %s(%s) -> %v]", v.Name, v.CallID, v.Result)
	case Usage:
		return fmt.Sprintf("[usage %+v]", v.Details)
	case ErrorContent:
		return "[error] " + v.Message
	default:
		return fmt.Sprintf("%v", c)
	}
}
