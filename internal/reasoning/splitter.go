// Package reasoning separates <think> blocks from generated text, so that
// reasoning can be shown to the user without being evaluated as script.
package reasoning

import "strings"

// Tags delimit a reasoning block. Matching is case-insensitive.
type Tags struct {
	Open  string
	Close string
}

// Think is the <think>...</think> convention.
var Think = Tags{Open: "<think>", Close: "</think>"}

// Parts is generated text split into what the model said and what it thought.
type Parts struct {
	Content   string
	Reasoning string
}

// Split separates raw into content and reasoning. A block opened but never
// closed extends to the end of raw.
func (t Tags) Split(raw string) Parts {
	lower := strings.ToLower(raw)
	openTag, closeTag := strings.ToLower(t.Open), strings.ToLower(t.Close)

	var p Parts
	var content, reasoning strings.Builder
	for pos := 0; pos < len(raw); {
		i := strings.Index(lower[pos:], openTag)
		if i < 0 {
			content.WriteString(raw[pos:])
			break
		}
		content.WriteString(raw[pos : pos+i])
		body := pos + i + len(openTag)
		j := strings.Index(lower[body:], closeTag)
		if j < 0 {
			reasoning.WriteString(raw[body:])
			break
		}
		reasoning.WriteString(raw[body : body+j])
		pos = body + j + len(closeTag)
	}
	p.Content = content.String()
	p.Reasoning = reasoning.String()
	return p
}

// Strip returns the content of raw with reasoning removed and surrounding
// whitespace trimmed.
func (t Tags) Strip(raw string) string {
	return strings.TrimSpace(t.Split(raw).Content)
}

// Splitter routes streamed fragments to content or reasoning as they arrive.
// Text that may be the start of a tag is held until it can be classified.
type Splitter struct {
	Tags    Tags
	inBlock bool
	held    string
}

// Push consumes a fragment and returns the newly classified text.
func (s *Splitter) Push(frag string) (content, reasoning string) {
	tags := s.Tags
	if tags.Open == "" {
		tags = Think
	}
	buf := s.held + frag
	s.held = ""

	var c, r strings.Builder
	for buf != "" {
		tag := tags.Open
		out := &c
		if s.inBlock {
			tag, out = tags.Close, &r
		}
		i := strings.Index(strings.ToLower(buf), strings.ToLower(tag))
		if i >= 0 {
			out.WriteString(buf[:i])
			buf = buf[i+len(tag):]
			s.inBlock = !s.inBlock
			continue
		}
		keep := partialSuffix(buf, tag)
		out.WriteString(buf[:len(buf)-keep])
		s.held = buf[len(buf)-keep:]
		break
	}
	return c.String(), r.String()
}

// Flush returns any held text, classified by the current state.
func (s *Splitter) Flush() (content, reasoning string) {
	held := s.held
	s.held = ""
	if s.inBlock {
		return "", held
	}
	return held, ""
}

// partialSuffix is the length of the longest suffix of s that is a proper
// prefix of tag.
func partialSuffix(s, tag string) int {
	ls, lt := strings.ToLower(s), strings.ToLower(tag)
	for k := min(len(lt)-1, len(ls)); k > 0; k-- {
		if strings.HasSuffix(ls, lt[:k]) {
			return k
		}
	}
	return 0
}
