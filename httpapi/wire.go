package httpapi

import (
	"fmt"

	"github.com/meshrun/meshrun/chatmodel"
)

// chatmodel.Content is a closed interface with no JSON tag of its own, so
// a wire representation needs an explicit discriminator. wireContent
// carries every variant's fields flattened into one struct; Kind selects
// which ones are meaningful, mirroring how the teacher's graph/model
// package keeps its own wire DTOs separate from its runtime types.
type wireContent struct {
	Kind string `json:"kind"`

	Text string `json:"text,omitempty"`

	MediaType string `json:"media_type,omitempty"`
	Bytes     []byte `json:"bytes,omitempty"`
	URI       string `json:"uri,omitempty"`

	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func toWireContent(c chatmodel.Content) (wireContent, error) {
	switch v := c.(type) {
	case chatmodel.Text:
		return wireContent{Kind: "text", Text: v.Value}, nil
	case chatmodel.TextReasoning:
		return wireContent{Kind: "reasoning", Text: v.Value}, nil
	case chatmodel.Data:
		return wireContent{Kind: "data", MediaType: v.MediaType, Bytes: v.Bytes}, nil
	case chatmodel.URI:
		return wireContent{Kind: "uri", MediaType: v.MediaType, URI: v.Value}, nil
	case chatmodel.FunctionCall:
		return wireContent{Kind: "function_call", CallID: v.CallID, Name: v.Name, Arguments: v.Arguments}, nil
	case chatmodel.FunctionResult:
		return wireContent{Kind: "function_result", CallID: v.CallID, Name: v.Name, Result: v.Result, Error: v.Error}, nil
	case chatmodel.ErrorContent:
		return wireContent{Kind: "error", Text: v.Message}, nil
	default:
		return wireContent{}, fmt.Errorf("httpapi: unknown content type %T", c)
	}
}

func (wc wireContent) toContent() (chatmodel.Content, error) {
	switch wc.Kind {
	case "text":
		return chatmodel.Text{Value: wc.Text}, nil
	case "reasoning":
		return chatmodel.TextReasoning{Value: wc.Text}, nil
	case "data":
		return chatmodel.Data{MediaType: wc.MediaType, Bytes: wc.Bytes}, nil
	case "uri":
		return chatmodel.URI{MediaType: wc.MediaType, Value: wc.URI}, nil
	case "function_call":
		return chatmodel.FunctionCall{CallID: wc.CallID, Name: wc.Name, Arguments: wc.Arguments}, nil
	case "function_result":
		return chatmodel.FunctionResult{CallID: wc.CallID, Name: wc.Name, Result: wc.Result, Error: wc.Error}, nil
	case "error":
		return chatmodel.ErrorContent{Message: wc.Text}, nil
	default:
		return nil, fmt.Errorf("httpapi: unknown content kind %q", wc.Kind)
	}
}

// wireMessage is the JSON shape of a chatmodel.Message on the wire.
type wireMessage struct {
	Role                 chatmodel.Role `json:"role"`
	Content              []wireContent  `json:"content"`
	AdditionalProperties map[string]any `json:"additional_properties,omitempty"`
}

func toWireMessage(m chatmodel.Message) (wireMessage, error) {
	wm := wireMessage{Role: m.Role, AdditionalProperties: m.AdditionalProperties}
	for _, c := range m.Content {
		wc, err := toWireContent(c)
		if err != nil {
			return wireMessage{}, err
		}
		wm.Content = append(wm.Content, wc)
	}
	return wm, nil
}

func (wm wireMessage) toMessage() (chatmodel.Message, error) {
	m := chatmodel.Message{Role: wm.Role, AdditionalProperties: wm.AdditionalProperties}
	for _, wc := range wm.Content {
		c, err := wc.toContent()
		if err != nil {
			return chatmodel.Message{}, err
		}
		m.Content = append(m.Content, c)
	}
	return m, nil
}

func marshalMessages(msgs []chatmodel.Message) ([]wireMessage, error) {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm, err := toWireMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, wm)
	}
	return out, nil
}

func unmarshalMessages(wms []wireMessage) ([]chatmodel.Message, error) {
	out := make([]chatmodel.Message, 0, len(wms))
	for _, wm := range wms {
		m, err := wm.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
