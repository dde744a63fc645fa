package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet:
		return m, nil
	case "":
		return StreamInstant, nil
	}
	return "", fmt.Errorf("unknown stream mode %q (instant, smooth, typewriter, quiet)", s)
}

const (
	smoothInterval = 50 * time.Millisecond
	smoothWords    = 5
)

// replyWriter prints the fragments of one assistant turn. Instant and
// typewriter output every fragment as it arrives, smooth groups them into
// short runs of words, and quiet prints nothing until Finish.
type replyWriter struct {
	mode StreamMode
	out  io.Writer
	raw  bool

	mu      sync.Mutex
	text    strings.Builder
	pending strings.Builder
	last    time.Time
	done    chan struct{}
}

func newReplyWriter(mode StreamMode, out io.Writer, raw bool) *replyWriter {
	w := &replyWriter{mode: mode, out: out, raw: raw, last: time.Now()}
	if mode == StreamSmooth {
		w.done = make(chan struct{})
		go w.tick(w.done)
	}
	return w
}

// Write records a fragment and prints it according to the mode.
func (w *replyWriter) Write(frag string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.text.WriteString(frag)
	switch w.mode {
	case StreamQuiet:
	case StreamSmooth:
		w.pending.WriteString(frag)
		if strings.Count(w.pending.String(), " ") >= smoothWords-1 || time.Since(w.last) >= smoothInterval {
			w.drain()
		}
	case StreamTypewriter:
		for _, r := range frag {
			w.emit(string(r))
		}
	default:
		w.emit(frag)
	}
}

// Finish prints whatever is still held back and returns the turn's text.
// The writer must not be used afterwards.
func (w *replyWriter) Finish() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.mode {
	case StreamQuiet:
		w.emit(w.text.String())
	case StreamSmooth:
		if w.done != nil {
			close(w.done)
			w.done = nil
		}
		w.drain()
	}
	return w.text.String()
}

// Text returns everything written so far.
func (w *replyWriter) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.text.String()
}

// emit writes s to the output; w.mu must be held.
func (w *replyWriter) emit(s string) {
	if s == "" {
		return
	}
	if w.raw {
		s = escapeRawOutput(s)
	}
	_, _ = io.WriteString(w.out, s)
}

// drain prints the pending smooth run; w.mu must be held.
func (w *replyWriter) drain() {
	w.emit(w.pending.String())
	w.pending.Reset()
	w.last = time.Now()
}

func (w *replyWriter) tick(done <-chan struct{}) {
	t := time.NewTicker(smoothInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			w.mu.Lock()
			if w.pending.Len() > 0 && time.Since(w.last) >= smoothInterval {
				w.drain()
			}
			w.mu.Unlock()
		}
	}
}

// escapeRawOutput renders control characters visibly, for inspecting exactly
// what the model produced.
func escapeRawOutput(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if strconv.IsPrint(r) {
				sb.WriteRune(r)
			} else {
				fmt.Fprintf(&sb, `\u%04x`, r)
			}
		}
	}
	return sb.String()
}
