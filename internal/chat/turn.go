// Package chat implements conversation contexts over an engine handle: the
// Continuous and Full-rebuild strategies and the decode stream that yields
// visible text for a generated turn.
package chat

import "strings"

// Role tags the author of a Turn. Values other than the predefined ones are
// preserved verbatim.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps a name to a Role. Known roles are matched case-insensitively.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r
	}
	return Role(s)
}

func (r Role) String() string { return string(r) }

// UnmarshalText implements encoding.TextUnmarshaler for YAML and JSON.
func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}

// Turn is one role-tagged message.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Message string `json:"message" yaml:"message"`
}

// Template encodes turns for the engine and recognises the end of a
// generated turn.
type Template interface {
	// Encode renders turns, appending an assistant primer unless the last
	// turn is from the assistant.
	Encode(turns []Turn) string
	// FilterToken returns (token, true) unless token completes a stop
	// sequence given the accumulated text before it.
	FilterToken(token, accumulated string) (string, bool)
	// TrimCommitted strips an echoed assistant header and a trailing stop.
	TrimCommitted(content string) string
	HeaderEnded(token string) bool
	StartsInHeader() bool
	// StopIndex returns the byte index of the first stop at or after from,
	// or -1.
	StopIndex(text string, from int) int
	// Holdback returns the length of the longest suffix of text that is a
	// proper prefix of a stop.
	Holdback(text string) int
}
