// Package protocol defines the JSON envelopes that tag conversation turns as
// human input, tool results or tool errors, so the model can tell them apart.
package protocol

import (
	"github.com/goccy/go-json"
)

// Envelope is the JSON object carried in a turn's message.
type Envelope struct {
	Role    string          `json:"role"`
	Message json.RawMessage `json:"message"`
}

type toolError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// UserMessage wraps human input: {"role":"user","message":"..."}.
func UserMessage(text string) string {
	return encode("user", text)
}

// ToolResult wraps a script result. A result that is itself valid JSON is
// embedded as is; anything else is embedded as a string.
func ToolResult(result string) string {
	if json.Valid([]byte(result)) {
		return mustMarshal(Envelope{Role: "tool", Message: json.RawMessage(result)})
	}
	return encode("tool", result)
}

// ToolError wraps a script failure:
// {"role":"tool","message":{"status":"error","error":"..."}}.
func ToolError(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return mustMarshal(struct {
		Role    string    `json:"role"`
		Message toolError `json:"message"`
	}{"tool", toolError{Status: "error", Error: msg}})
}

// Decode parses an envelope produced by this package.
func Decode(s string) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal([]byte(s), &e)
	return e, err
}

// Text returns the message as a string when it is a JSON string, or the raw
// JSON otherwise.
func (e Envelope) Text() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

func encode(role, text string) string {
	return mustMarshal(struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	}{role, text})
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only strings and RawMessage already validated reach here.
		panic(err)
	}
	return string(b)
}
