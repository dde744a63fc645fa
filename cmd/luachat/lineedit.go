package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// lineReader reads one line of user input. It returns io.EOF when input is
// exhausted or the user interrupts.
type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// pipeReader reads lines from a non-interactive source.
type pipeReader struct {
	r   *bufio.Reader
	out io.Writer
}

func newPipeReader(in io.Reader, out io.Writer) *pipeReader {
	return &pipeReader{r: bufio.NewReader(in), out: out}
}

func (p *pipeReader) ReadLine(prompt string) (string, error) {
	_, _ = io.WriteString(p.out, prompt)
	s, err := p.r.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

// newLineReader returns the raw-mode editor on a terminal and a plain line
// reader otherwise.
func newLineReader() lineReader {
	if stdinIsTTY() {
		if ed := newTerminalEditor(); ed != nil {
			return ed
		}
	}
	return newPipeReader(os.Stdin, os.Stdout)
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
