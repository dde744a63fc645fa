//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// terminalEditor is a small raw-mode line editor with history, cursor
// movement and word editing.
type terminalEditor struct {
	fd      int
	in      *os.File
	out     io.Writer
	history []string
}

func newTerminalEditor() lineReader {
	return &terminalEditor{fd: int(os.Stdin.Fd()), in: os.Stdin, out: os.Stdout}
}

// editBuffer is the line being edited. cursor is a byte offset that always
// sits on a rune boundary.
type editBuffer struct {
	line   []byte
	cursor int
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func (b *editBuffer) insert(p []byte) {
	b.line = append(b.line[:b.cursor], append(p, b.line[b.cursor:]...)...)
	b.cursor += len(p)
}

func (b *editBuffer) set(s string) {
	b.line = append(b.line[:0], s...)
	b.cursor = len(b.line)
}

func (b *editBuffer) left() {
	if b.cursor > 0 {
		_, n := utf8.DecodeLastRune(b.line[:b.cursor])
		b.cursor -= n
	}
}

func (b *editBuffer) right() {
	if b.cursor < len(b.line) {
		_, n := utf8.DecodeRune(b.line[b.cursor:])
		b.cursor += n
	}
}

func (b *editBuffer) backspace() {
	if b.cursor == 0 {
		return
	}
	_, n := utf8.DecodeLastRune(b.line[:b.cursor])
	b.line = append(b.line[:b.cursor-n], b.line[b.cursor:]...)
	b.cursor -= n
}

func (b *editBuffer) del() {
	if b.cursor < len(b.line) {
		_, n := utf8.DecodeRune(b.line[b.cursor:])
		b.line = append(b.line[:b.cursor], b.line[b.cursor+n:]...)
	}
}

func (b *editBuffer) wordStart() int {
	i := b.cursor
	for i > 0 && isSpace(b.line[i-1]) {
		i--
	}
	for i > 0 && !isSpace(b.line[i-1]) {
		i--
	}
	return i
}

func (b *editBuffer) wordEnd() int {
	i := b.cursor
	for i < len(b.line) && isSpace(b.line[i]) {
		i++
	}
	for i < len(b.line) && !isSpace(b.line[i]) {
		i++
	}
	return i
}

func (b *editBuffer) deleteWordBack() {
	start := b.wordStart()
	b.line = append(b.line[:start], b.line[b.cursor:]...)
	b.cursor = start
}

func (b *editBuffer) deleteWordForward() {
	end := b.wordEnd()
	b.line = append(b.line[:b.cursor], b.line[end:]...)
}

func (e *terminalEditor) ReadLine(prompt string) (string, error) {
	oldState, err := unix.IoctlGetTermios(e.fd, unix.TCGETS)
	if err != nil {
		return newPipeReader(e.in, e.out).ReadLine(prompt)
	}
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(e.fd, unix.TCSETS, &newState); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(e.fd, unix.TCSETS, oldState)
	}()

	_, _ = fmt.Fprint(e.out, prompt)
	var (
		buf          editBuffer
		escState     int
		escBuf       strings.Builder
		pending      []byte
		raw          [16]byte
		histPos      = len(e.history)
		histBrowsing bool
		histDraft    string
	)

	redraw := func() {
		_, _ = fmt.Fprintf(e.out, "\r%s%s\x1b[K", prompt, buf.line)
		if buf.cursor < len(buf.line) {
			_, _ = fmt.Fprintf(e.out, "\r%s%s", prompt, buf.line[:buf.cursor])
		}
	}
	handleCSI := func(seq string) {
		switch seq {
		case "A": // up
			if len(e.history) == 0 {
				return
			}
			if !histBrowsing {
				histDraft = string(buf.line)
				histBrowsing = true
				histPos = len(e.history)
			}
			if histPos > 0 {
				histPos--
				buf.set(e.history[histPos])
			}
		case "B": // down
			if !histBrowsing {
				return
			}
			if histPos < len(e.history)-1 {
				histPos++
				buf.set(e.history[histPos])
			} else {
				histPos = len(e.history)
				buf.set(histDraft)
				histBrowsing = false
			}
		case "D":
			buf.left()
		case "C":
			buf.right()
		case "H":
			buf.cursor = 0
		case "F":
			buf.cursor = len(buf.line)
		case "3~":
			buf.del()
		case "1;5D", "5D":
			buf.cursor = buf.wordStart()
		case "1;5C", "5C":
			buf.cursor = buf.wordEnd()
		case "3;5~":
			buf.deleteWordForward()
		default:
			return
		}
		redraw()
	}

	for {
		n, err := e.in.Read(raw[:])
		if err != nil {
			return "", err
		}
		for _, b := range raw[:n] {
			switch escState {
			case 1:
				escState = 0
				switch b {
				case '[':
					escState = 2
					escBuf.Reset()
				case 'b', 'B': // Alt+b
					buf.cursor = buf.wordStart()
					redraw()
				case 'f', 'F': // Alt+f
					buf.cursor = buf.wordEnd()
					redraw()
				case 127: // Alt+Backspace
					buf.deleteWordBack()
					redraw()
				}
				continue
			case 2:
				escBuf.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					handleCSI(escBuf.String())
					escState = 0
				}
				continue
			}

			switch b {
			case 27: // ESC
				escState = 1
			case '\r', '\n':
				_, _ = fmt.Fprint(e.out, "\r\n")
				out := string(buf.line)
				if strings.TrimSpace(out) != "" {
					e.history = append(e.history, out)
				}
				return out, nil
			case 3: // Ctrl+C
				_, _ = fmt.Fprint(e.out, "^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(buf.line) == 0 {
					_, _ = fmt.Fprint(e.out, "\r\n")
					return "", io.EOF
				}
			case 127, 8: // backspace
				buf.backspace()
				redraw()
			case 1: // Ctrl+A
				buf.cursor = 0
				redraw()
			case 5: // Ctrl+E
				buf.cursor = len(buf.line)
				redraw()
			case 21: // Ctrl+U
				buf.line = append(buf.line[:0], buf.line[buf.cursor:]...)
				buf.cursor = 0
				redraw()
			case 23: // Ctrl+W
				buf.deleteWordBack()
				redraw()
			default:
				if b < 32 {
					continue
				}
				// Multi-byte runes are inserted once complete.
				pending = append(pending, b)
				if !utf8.FullRune(pending) {
					continue
				}
				buf.insert(pending)
				pending = pending[:0]
				redraw()
			}
		}
	}
}
