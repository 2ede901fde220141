package handoff

import (
	"strings"

	"github.com/meshrun/meshrun/chatmodel"
)

const textHintPrefix = "HANDOFF_TO:"

// DetectHandoff inspects an assistant message for a handoff signal,
// running the three detection strategies in precedence order: structured
// metadata, then a tool call, then a text hint. The first strategy that
// names an id present in allowed wins; an id not in allowed is treated the
// same as no signal at all, per spec.md's "unknown target ids are treated
// as no handoff."
func DetectHandoff(msg chatmodel.Message, allowed map[string]bool) (targetID string, ok bool) {
	if id, found := structuredSignal(msg); found && allowed[id] {
		return id, true
	}
	if id, found := toolCallSignal(msg); found && allowed[id] {
		return id, true
	}
	if id, found := textHintSignal(msg); found && allowed[id] {
		return id, true
	}
	return "", false
}

func structuredSignal(msg chatmodel.Message) (string, bool) {
	if raw, ok := msg.AdditionalProperties["handoff_to"]; ok {
		if id, ok := raw.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

func toolCallSignal(msg chatmodel.Message) (string, bool) {
	for _, call := range msg.FunctionCalls() {
		if id, ok := strings.CutPrefix(call.Name, "handoff_to_"); ok && id != "" {
			return id, true
		}
		if id, ok := call.Arguments["handoff_to"]; ok {
			if s, ok := id.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func textHintSignal(msg chatmodel.Message) (string, bool) {
	for _, line := range strings.Split(msg.TextValue(), "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, textHintPrefix); ok {
			if id := strings.TrimSpace(rest); id != "" {
				return id, true
			}
		}
	}
	return "", false
}
