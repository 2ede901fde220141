// Package openai adapts github.com/openai/openai-go to the chatmodel.Client
// contract, with retry-with-backoff on transient errors.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/meshrun/meshrun/chatmodel"
)

// Client implements chatmodel.Client for OpenAI's chat completions API.
type Client struct {
	apiKey     string
	modelName  string
	transport  completer
	maxRetries int
	retryDelay time.Duration
}

type completer interface {
	createChatCompletion(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error)
}

// New builds a Client configured with 3 retries and a 1-second base delay.
// An empty modelName defaults to gpt-4o.
func New(apiKey, modelName string) *Client {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &Client{
		apiKey:     apiKey,
		modelName:  modelName,
		transport:  &sdkTransport{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements chatmodel.Client.
func (c *Client) Chat(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	if err := ctx.Err(); err != nil {
		return chatmodel.Response{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.transport.createChatCompletion(ctx, req.Messages, req.Tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return chatmodel.Response{}, err
		}
		if attempt >= c.maxRetries {
			break
		}

		delay := c.retryDelay
		if isRateLimitError(err) {
			delay = c.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return chatmodel.Response{}, ctx.Err()
		}
	}

	return chatmodel.Response{}, fmt.Errorf("openai: failed after %d retries: %w", c.maxRetries, lastErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }

type sdkTransport struct {
	apiKey    string
	modelName string
}

func (t *sdkTransport) createChatCompletion(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolSpec) (chatmodel.Response, error) {
	if t.apiKey == "" {
		return chatmodel.Response{}, errors.New("openai: API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(t.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(t.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return chatmodel.Response{}, fmt.Errorf("openai: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []chatmodel.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		text := msg.TextValue()
		switch msg.Role {
		case chatmodel.RoleSystem:
			result[i] = openaisdk.SystemMessage(text)
		case chatmodel.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(text)
		default:
			result[i] = openaisdk.UserMessage(text)
		}
	}
	return result
}

func convertTools(tools []chatmodel.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) chatmodel.Response {
	if len(resp.Choices) == 0 {
		return chatmodel.Response{}
	}
	msg := resp.Choices[0].Message

	content := []chatmodel.Content{chatmodel.Text{Value: msg.Content}}
	for _, tc := range msg.ToolCalls {
		content = append(content, chatmodel.FunctionCall{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseToolArguments(tc.Function.Arguments),
		})
	}

	usage := chatmodel.UsageDetails{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}

	return chatmodel.Response{
		Message: chatmodel.Message{Role: chatmodel.RoleAssistant, Content: content},
		Usage:   usage,
	}
}

func parseToolArguments(jsonStr string) map[string]any {
	if jsonStr == "" {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return map[string]any{"_raw": jsonStr}
	}
	return result
}
