// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// chatmodel.Client contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/meshrun/meshrun/chatmodel"
)

// Client implements chatmodel.Client for Anthropic's Claude API.
type Client struct {
	apiKey    string
	modelName string
	transport messageCreator
}

// messageCreator is the narrow interface Client depends on, so tests can
// substitute a fake without a live API key.
type messageCreator interface {
	createMessage(ctx context.Context, systemPrompt string, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error)
}

// New builds a Client for the given API key and model name. An empty
// modelName defaults to Claude Sonnet 4.5.
func New(apiKey, modelName string) *Client {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
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

	systemPrompt, rest := extractSystemPrompt(req.Messages)
	return c.transport.createMessage(ctx, systemPrompt, rest, req.Tools)
}

// extractSystemPrompt pulls out and concatenates every system message,
// since Anthropic's API takes the system prompt as a separate parameter
// rather than as a message with RoleSystem.
func extractSystemPrompt(messages []chatmodel.Message) (string, []chatmodel.Message) {
	var system string
	var rest []chatmodel.Message
	for _, msg := range messages {
		if msg.Role == chatmodel.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.TextValue()
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

type sdkTransport struct {
	apiKey    string
	modelName string
}

func (t *sdkTransport) createMessage(ctx context.Context, systemPrompt string, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error) {
	if t.apiKey == "" {
		return chatmodel.Response{}, errors.New("anthropic: API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(t.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(t.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return chatmodel.Response{}, fmt.Errorf("anthropic: %w", err)
	}

	return convertResponse(resp), nil
}

func convertMessages(messages []chatmodel.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, msg := range messages {
		text := msg.TextValue()
		switch msg.Role {
		case chatmodel.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(text)))
		default:
			result = append(result, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(text)))
		}
	}
	return result
}

func convertTools(tools []chatmodel.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return result
}

func convertResponse(resp *anthropicsdk.Message) chatmodel.Response {
	var content []chatmodel.Content
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			content = append(content, chatmodel.Text{Value: b.Text})
		case anthropicsdk.ToolUseBlock:
			content = append(content, chatmodel.FunctionCall{
				CallID:    b.ID,
				Name:      b.Name,
				Arguments: convertToolInput(b.Input),
			})
		}
	}

	usage := chatmodel.UsageDetails{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return chatmodel.Response{
		Message: chatmodel.Message{Role: chatmodel.RoleAssistant, Content: content},
		Usage:   usage,
	}
}

func convertToolInput(input any) map[string]any {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]any); ok {
		return m
	}
	return map[string]any{"_raw": input}
}
