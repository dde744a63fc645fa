// Package template provides data-driven prompt templates for model families.
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/luachat/internal/chat"
)

// Template is the contract the chat contexts consume.
type Template = chat.Template

var (
	ErrInvalid       = errors.New("invalid template")
	ErrUnknownPreset = errors.New("unknown template preset")
)

// Preset is a template described entirely by data: the markers wrapped
// around every turn and the stop sequences that end generation.
type Preset struct {
	Name         string   `yaml:"name"`
	HeaderPrefix string   `yaml:"header_prefix"`
	HeaderSuffix string   `yaml:"header_suffix"`
	EndOfContent string   `yaml:"end_of_content"`
	Stops        []string `yaml:"stops"`
	// HeaderEnd, when set, marks a family whose models emit their own
	// header; generated tokens are discarded until one ends with it.
	HeaderEnd string `yaml:"header_end"`
	// RoleNames renames roles in headers, e.g. assistant as "model".
	RoleNames map[chat.Role]string `yaml:"role_names"`
}

var _ Template = Preset{}

// Validate checks that generation can terminate under p.
func (p Preset) Validate() error {
	if len(p.Stops) == 0 {
		return fmt.Errorf("%s: no stop sequences: %w", p.Name, ErrInvalid)
	}
	for _, s := range p.Stops {
		if s == "" {
			return fmt.Errorf("%s: empty stop sequence: %w", p.Name, ErrInvalid)
		}
	}
	for _, s := range p.Stops {
		if strings.Contains(p.EndOfContent, s) {
			return nil
		}
	}
	return fmt.Errorf("%s: end of content %q matches no stop: %w", p.Name, p.EndOfContent, ErrInvalid)
}

func (p Preset) roleName(r chat.Role) string {
	if n, ok := p.RoleNames[r]; ok {
		return n
	}
	return string(r)
}

func (p Preset) header(r chat.Role) string {
	return p.HeaderPrefix + p.roleName(r) + p.HeaderSuffix
}

// Encode renders turns and primes an assistant header unless the last turn
// is already the assistant's.
func (p Preset) Encode(turns []chat.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(p.header(t.Role))
		b.WriteString(t.Message)
		b.WriteString(p.EndOfContent)
	}
	if turns[len(turns)-1].Role != chat.RoleAssistant {
		b.WriteString(p.header(chat.RoleAssistant))
	}
	return b.String()
}

// FilterToken reports false when token is a stop or completes a stop that
// overlaps it.
func (p Preset) FilterToken(token, accumulated string) (string, bool) {
	for _, s := range p.Stops {
		if token == s {
			return "", false
		}
	}
	text := accumulated + token
	for _, s := range p.Stops {
		from := max(0, len(accumulated)-len(s)+1)
		if strings.Contains(text[from:], s) {
			return "", false
		}
	}
	return token, true
}

// TrimCommitted strips a leading assistant header and a trailing stop.
func (p Preset) TrimCommitted(content string) string {
	header := p.header(chat.RoleAssistant)
	for {
		before := content
		if header != "" {
			content, _ = strings.CutPrefix(content, header)
		}
		for _, s := range p.Stops {
			if c, ok := strings.CutSuffix(content, s); ok {
				content = c
				break
			}
		}
		if content == before {
			return content
		}
	}
}

// HeaderEnded reports whether token closes the assistant header.
func (p Preset) HeaderEnded(token string) bool {
	return p.HeaderEnd == "" || strings.HasSuffix(token, p.HeaderEnd)
}

// StartsInHeader reports whether generation opens inside a header.
func (p Preset) StartsInHeader() bool { return p.HeaderEnd != "" }

// StopIndex returns the byte offset of the first stop at or after from, or -1.
func (p Preset) StopIndex(text string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(text) {
		return -1
	}
	best := -1
	for _, s := range p.Stops {
		if i := strings.Index(text[from:], s); i >= 0 && (best < 0 || from+i < best) {
			best = from + i
		}
	}
	return best
}

// Holdback is the length of the longest suffix of text that may begin a stop.
func (p Preset) Holdback(text string) int {
	hold := 0
	for _, s := range p.Stops {
		for k := min(len(s)-1, len(text)); k > hold; k-- {
			if strings.HasSuffix(text, s[:k]) {
				hold = k
				break
			}
		}
	}
	return hold
}
