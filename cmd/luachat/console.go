package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/samcharles93/luachat/internal/hook"
	"github.com/samcharles93/luachat/internal/protocol"
	"github.com/samcharles93/luachat/internal/reasoning"
)

type consoleStyles struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	failure   lipgloss.Style
	reasoning lipgloss.Style
}

func newConsoleStyles(r *lipgloss.Renderer) consoleStyles {
	return consoleStyles{
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		tool:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		failure:   r.NewStyle().Foreground(lipgloss.Color("203")),
		reasoning: r.NewStyle().Faint(true).Italic(true),
	}
}

// consoleOptions configures the interactive hooks.
type consoleOptions struct {
	Mode      StreamMode
	Raw       bool
	Highlight bool
	// Envelope wraps inputs and tool results in JSON envelopes.
	Envelope bool
	Marker   string
}

// console implements hook.Hooks on a terminal.
type console struct {
	in     lineReader
	out    io.Writer
	styles consoleStyles
	opts   consoleOptions

	stream *replyWriter
	split  reasoning.Splitter
	// live is set once the initial turns have been normalized; only then
	// are tool results echoed.
	live bool
}

var _ hook.Hooks = (*console)(nil)

func newConsole(in lineReader, out io.Writer, opts consoleOptions) *console {
	return &console{
		in:     in,
		out:    out,
		styles: newConsoleStyles(lipgloss.NewRenderer(out)),
		opts:   opts,
		split:  reasoning.Splitter{Tags: reasoning.Think},
	}
}

func (c *console) ReadInput(ctx context.Context) (string, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", false, nil
		}
		_, _ = fmt.Fprintln(c.out, c.styles.user.Render("User:"))
		line, err := c.in.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return "", false, nil
		}
		return line, true, nil
	}
}

func (c *console) OnToken(tok hook.Token) error {
	switch tok.Kind {
	case hook.Start:
		_, _ = fmt.Fprintln(c.out, c.styles.assistant.Render("AI:"))
		mode, out := c.opts.Mode, c.out
		if c.opts.Highlight {
			mode, out = StreamQuiet, io.Discard
		}
		c.stream = newReplyWriter(mode, out, c.opts.Raw)
		c.split = reasoning.Splitter{Tags: reasoning.Think}
	case hook.Chunk:
		content, thought := c.split.Push(tok.Text)
		c.write(content, thought)
	case hook.End:
		content, thought := c.split.Flush()
		c.write(content, thought)
		if c.stream != nil {
			text := c.stream.Finish()
			if c.opts.Highlight {
				c.renderCode(text)
			}
			c.stream = nil
		}
		_, _ = fmt.Fprintln(c.out)
		if tok.Err != nil {
			_, _ = fmt.Fprintln(c.out, c.styles.failure.Render("generation failed: "+tok.Err.Error()))
		}
	}
	return nil
}

func (c *console) write(content, thought string) {
	if thought != "" {
		_, _ = fmt.Fprint(c.out, c.styles.reasoning.Render(thought))
	}
	if content != "" && c.stream != nil {
		c.stream.Write(content)
	}
}

// renderCode prints a reply as highlighted Lua unless it is marked as not
// being code.
func (c *console) renderCode(text string) {
	if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), c.opts.Marker) {
		_, _ = fmt.Fprint(c.out, text)
		return
	}
	var sb strings.Builder
	if err := quick.Highlight(&sb, text, "lua", "terminal256", "monokai"); err != nil {
		_, _ = fmt.Fprint(c.out, text)
		return
	}
	_, _ = fmt.Fprint(c.out, sb.String())
}

func (c *console) NormalizeInput(input string) string {
	if !c.opts.Envelope {
		return input
	}
	return protocol.UserMessage(input)
}

func (c *console) FormatToolResult(result string) string {
	if c.live {
		_, _ = fmt.Fprintln(c.out, c.styles.tool.Render("Lua:"))
		_, _ = fmt.Fprintln(c.out, result)
	}
	if !c.opts.Envelope {
		return result
	}
	return protocol.ToolResult(result)
}

func (c *console) FormatScriptError(err error) string {
	_, _ = fmt.Fprintln(c.out, c.styles.tool.Render("Lua:"))
	_, _ = fmt.Fprintln(c.out, c.styles.failure.Render(err.Error()))
	if !c.opts.Envelope {
		return err.Error()
	}
	return protocol.ToolError(err)
}
