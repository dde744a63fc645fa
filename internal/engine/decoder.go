package engine

import (
	"strings"
	"unicode/utf8"
)

// Decoder assembles token bytes into text. Bytes that end in the middle of a
// UTF-8 sequence are held until the sequence completes; invalid bytes become
// U+FFFD. A Decoder must be reset at the start of every generated turn.
type Decoder struct {
	pending []byte
}

// Push appends b and returns the text that is now complete.
func (d *Decoder) Push(b []byte) string {
	d.pending = append(d.pending, b...)

	var sb strings.Builder
	i := 0
	for i < len(d.pending) {
		rest := d.pending[i:]
		if !utf8.FullRune(rest) {
			break
		}
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(rest[:size])
		}
		i += size
	}
	d.pending = append(d.pending[:0], d.pending[i:]...)
	return sb.String()
}

// Flush returns any held bytes as replacement characters and resets the
// decoder.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	d.pending = d.pending[:0]
	return string(utf8.RuneError)
}

func (d *Decoder) Reset() { d.pending = d.pending[:0] }
