// Package google adapts github.com/google/generative-ai-go to the
// chatmodel.Client contract.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/meshrun/meshrun/chatmodel"
)

// Client implements chatmodel.Client for Google's Gemini API.
type Client struct {
	apiKey    string
	modelName string
	transport contentGenerator
}

type contentGenerator interface {
	generateContent(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error)
}

// New builds a Client for the given API key and model name. An empty
// modelName defaults to gemini-2.5-flash.
func New(apiKey, modelName string) *Client {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		transport: &sdkTransport{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements chatmodel.Client.
func (c *Client) Chat(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	if err := ctx.Err(); err != nil {
		return chatmodel.Response{}, err
	}
	return c.transport.generateContent(ctx, req.Messages, req.Tools)
}

type sdkTransport struct {
	apiKey    string
	modelName string
}

func (t *sdkTransport) generateContent(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error) {
	if t.apiKey == "" {
		return chatmodel.Response{}, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(t.apiKey))
	if err != nil {
		return chatmodel.Response{}, fmt.Errorf("google: creating client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(t.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return chatmodel.Response{}, fmt.Errorf("google: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []chatmodel.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if text := msg.TextValue(); text != "" {
			parts = append(parts, genai.Text(text))
		}
	}
	return parts
}

func convertTools(tools []chatmodel.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertTypeString(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}

	if required, ok := schema["required"].([]string); ok {
		result.Required = required
	} else if required, ok := schema["required"].([]any); ok {
		strs := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		result.Required = strs
	}

	return result
}

func convertTypeString(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse) chatmodel.Response {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return chatmodel.Response{}
	}

	var content []chatmodel.Content
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			content = append(content, chatmodel.Text{Value: string(p)})
		case genai.FunctionCall:
			content = append(content, chatmodel.FunctionCall{Name: p.Name, Arguments: p.Args})
		}
	}

	var usage chatmodel.UsageDetails
	if resp.UsageMetadata != nil {
		usage = chatmodel.UsageDetails{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return chatmodel.Response{
		Message: chatmodel.Message{Role: chatmodel.RoleAssistant, Content: content},
		Usage:   usage,
	}
}
