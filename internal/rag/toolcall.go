package rag

import (
	"encoding/json"
	"strings"

	"github.com/docassist/docassist/internal/booking"
)

const bookInterviewTool = "book_interview"

type toolCall struct {
	ToolName  string       `json:"tool_name"`
	Arguments booking.Args `json:"arguments"`
}

// parseToolCall reports whether the model's reply is a book_interview
// tool call. Only replies that are a single JSON object qualify; JSON
// embedded in prose is treated as a normal answer.
func parseToolCall(reply string) (booking.Args, bool) {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return booking.Args{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(trimmed), &call); err != nil {
		return booking.Args{}, false
	}
	if call.ToolName != bookInterviewTool {
		return booking.Args{}, false
	}
	return call.Arguments, true
}
